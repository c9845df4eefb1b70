// SPDX-License-Identifier: MIT

//go:build linux

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTerminateReapsGroup(t *testing.T) {
	// A shell that forks a child and sleeps, so the group has two
	// processes.
	cmd := exec.Command("sh", "-c", "sleep 100 & sleep 100")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	require.Equal(t, pid, pgid, "command should lead its own group")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	err = Terminate(cmd, waitCh, 500*time.Millisecond)
	require.Error(t, err, "signalled process reports a non-zero exit")

	// The whole group must be gone, not just the shell.
	require.Eventually(t, func() bool {
		return syscall.Kill(-pgid, syscall.Signal(0)) == syscall.ESRCH
	}, 2*time.Second, 50*time.Millisecond, "process group should be dead")
}

func TestTerminateNilSafe(t *testing.T) {
	require.NoError(t, Terminate(nil, nil, time.Millisecond))
	require.NoError(t, Terminate(exec.Command("sh"), nil, time.Millisecond), "unstarted command")
}

func TestKillAlreadyExited(t *testing.T) {
	cmd := exec.Command("true")
	Set(cmd)
	require.NoError(t, cmd.Run())

	require.NoError(t, Kill(cmd, syscall.SIGTERM), "exited process is not an error")
}

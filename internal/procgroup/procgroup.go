// SPDX-License-Identifier: MIT

// Package procgroup manages subprocess process groups so that killing
// yt-dlp also reaps any children it forked. Commands must be prepared
// with Set before Start for Terminate to work as a group reaper.
package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
)

// Set configures cmd to start in its own process group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate stops cmd's process group: SIGTERM first, then SIGKILL
// when the process has not exited within grace. waitCh must carry the
// result of cmd.Wait; Terminate drains it and returns its error. Safe
// to call with a nil or unstarted cmd.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	signalCounted(cmd, syscall.SIGTERM, "SIGTERM")

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
	}

	signalCounted(cmd, syscall.SIGKILL, "SIGKILL")
	return <-waitCh
}

func signalCounted(cmd *exec.Cmd, sig syscall.Signal, name string) {
	switch err := Kill(cmd, sig); {
	case err == nil:
		metrics.IncSubprocessKill(name, "sent")
	case processGone(err):
		metrics.IncSubprocessKill(name, "gone")
	default:
		metrics.IncSubprocessKill(name, "error")
	}
}

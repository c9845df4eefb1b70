// SPDX-License-Identifier: MIT

//go:build !windows

package fs

import (
	"errors"
	"syscall"
)

func isSharingViolation(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY) || errors.Is(err, syscall.EAGAIN)
}

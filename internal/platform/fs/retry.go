// SPDX-License-Identifier: MIT

// Package fs provides the durable file primitives the pipeline relies
// on: atomic replace-on-rename writes, reads and appends that survive
// transient sharing violations, and path confinement for user-supplied
// output locations.
package fs

import (
	"time"
)

const maxAttempts = 5

// retryDelay returns the wait before the next attempt. The schedule is
// 2^attempt * 10ms plus a linear (attempt+1) * 10ms component, so
// attempts 0..4 wait 20ms, 40ms, 70ms, 120ms, 210ms.
func retryDelay(attempt int) time.Duration {
	return (1<<attempt)*10*time.Millisecond + time.Duration(attempt+1)*10*time.Millisecond
}

// withRetry runs op, retrying only on sharing violations (a reader
// holding the file open, commonly seen on Windows). All other errors
// fail fast.
func withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = op()
		if err == nil || !isSharingViolation(err) {
			return err
		}
		time.Sleep(retryDelay(attempt))
	}
	return err
}

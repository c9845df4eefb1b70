// SPDX-License-Identifier: MIT

package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic writes data to path via a uniquely named temporary
// file in the same directory followed by an atomic rename. The rename
// is retried on sharing violations; the temporary file is removed on
// every failure path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return withRetry(func() error {
		pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
		if err != nil {
			return fmt.Errorf("create pending file: %w", err)
		}
		defer pending.Cleanup() //nolint:errcheck // cleanup after replace is a no-op

		if _, err := pending.Write(data); err != nil {
			return fmt.Errorf("write pending file: %w", err)
		}
		if err := pending.CloseAtomicallyReplace(); err != nil {
			return fmt.Errorf("atomically replace %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

// ReadFile reads path, retrying on sharing violations with the same
// schedule as writes. Other errors, including os.ErrNotExist, fail
// fast.
func ReadFile(path string) ([]byte, error) {
	var data []byte
	err := withRetry(func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

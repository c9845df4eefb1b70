// SPDX-License-Identifier: MIT

package fs

import (
	"fmt"
	"os"
	"strings"
)

// AppendLine appends a single line to path, creating the file if
// needed. The line is written with one Write call including the
// trailing newline, so concurrent appenders in O_APPEND mode never
// interleave partial lines. Sharing violations are retried.
func AppendLine(path, line string) error {
	line = strings.TrimRight(line, "\n") + "\n"
	return withRetry(func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open %s for append: %w", path, err)
		}
		if _, err := f.WriteString(line); err != nil {
			f.Close() //nolint:errcheck
			return fmt.Errorf("append to %s: %w", path, err)
		}
		return f.Close()
	})
}

// ReadLines returns the non-empty, whitespace-trimmed lines of path.
// A missing file yields an empty slice and no error.
func ReadLines(path string) ([]string, error) {
	data, err := ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lines []string
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

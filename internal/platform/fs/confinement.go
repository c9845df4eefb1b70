// SPDX-License-Identifier: MIT

package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ConfineRel joins root and relTarget and ensures the result stays
// physically underneath root. It rejects absolute targets, backslashes
// and traversal segments so untrusted names (video titles, channel
// names) can never escape the output tree.
func ConfineRel(root, relTarget string) (string, error) {
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}

	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) || strings.HasPrefix(cleanRel, "/") {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot := absRoot
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		realRoot = resolved
	}

	full := filepath.Join(realRoot, cleanRel)
	rel, err := filepath.Rel(realRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", relTarget)
	}
	return full, nil
}

// IsRegularFile reports an error unless path exists and is a regular
// file.
func IsRegularFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

// invalidNameChars are characters stripped from user-visible names
// before they become path components. Covers both POSIX and Windows
// reserved characters.
var invalidNameChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "",
)

const maxNameLen = 150

// SanitizeName converts an arbitrary string (video title, channel
// name) into a safe single path component. Empty results become
// "untitled".
func SanitizeName(name string) string {
	s := invalidNameChars.Replace(name)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, " .")
	if len(s) > maxNameLen {
		cut := maxNameLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.Trim(s[:cut], " .")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

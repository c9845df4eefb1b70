// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/transcache"
)

func TestRunArgValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{
			name: "no arguments",
			args: nil,
			want: 1,
		},
		{
			name: "help",
			args: []string{"help"},
			want: 0,
		},
		{
			name: "version",
			args: []string{"version"},
			want: 0,
		},
		{
			name: "version flag",
			args: []string{"--version"},
			want: 0,
		},
		{
			name: "unknown subcommand",
			args: []string{"definitely-not-a-command"},
			want: 1,
		},
		{
			name: "channel without url",
			args: []string{"channel"},
			want: 1,
		},
		{
			name: "urls without file",
			args: []string{"urls"},
			want: 1,
		},
		{
			name: "run and dry-run together",
			args: []string{"channel", "--url", "https://youtu.be/abc", "--run", "--dry-run"},
			want: 1,
		},
		{
			name: "unknown flag",
			args: []string{"urls", "--definitely-not-a-flag"},
			want: 1,
		},
		{
			name: "cache without subcommand",
			args: []string{"cache"},
			want: 1,
		},
		{
			name: "cache unknown subcommand",
			args: []string{"cache", "defrag"},
			want: 1,
		},
		{
			name: "cache verify bad mode",
			args: []string{"cache", "verify", "--mode", "paranoid"},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRunTestCookieWithoutCookie(t *testing.T) {
	t.Setenv("SUBPIPE_COOKIE_FILE", "")

	if got := runTestCookie(nil); got != 1 {
		t.Errorf("runTestCookie(nil) = %d, want 1", got)
	}
}

func TestRunTestCookieMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "cookies.txt")

	if got := runTestCookie([]string{"--cookie", missing}); got != 1 {
		t.Errorf("runTestCookie(--cookie %s) = %d, want 1", missing, got)
	}
}

func TestReadURLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://youtu.be/a\r\nhttps://youtu.be/b\n\nhttps://youtu.be/c"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	lines, err := readURLFile(path)
	if err != nil {
		t.Fatalf("readURLFile: %v", err)
	}
	want := []string{"https://youtu.be/a", "https://youtu.be/b", "", "https://youtu.be/c"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("readURLFile = %v, want %v", lines, want)
	}
}

func TestReadURLFileMissing(t *testing.T) {
	if _, err := readURLFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunCacheVerifyMissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "cache.db")
	if got := runCacheVerify([]string{"--db", missing}); got != 1 {
		t.Errorf("cache verify on missing db = %d, want 1", got)
	}
}

func TestRunCachePruneRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := transcache.Open(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	if err := store.Put(context.Background(), "k1", "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := runCacheVerify([]string{"--db", path}); got != 0 {
		t.Errorf("cache verify = %d, want 0", got)
	}
	// A generous max-age keeps the fresh entry.
	if got := runCachePrune([]string{"--db", path, "--max-age", "24h"}); got != 0 {
		t.Errorf("cache prune = %d, want 0", got)
	}
	if got := runCachePrune([]string{"--db", path, "--max-age", "-1h"}); got != 1 {
		t.Errorf("cache prune with bad max-age = %d, want 1", got)
	}
}

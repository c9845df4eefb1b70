// SPDX-License-Identifier: MIT

// Package archive keeps the append-only record of completed videos.
// Each line binds a video id to the language-config hash it was
// processed under, so changing language settings re-processes old
// videos while unchanged ones are skipped.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
)

const linePrefix = "youtube "

// FormatLine renders one archive line: "youtube <id> # lang_hash=<hex>".
func FormatLine(videoID, configHash string) string {
	return fmt.Sprintf("youtube %s # lang_hash=%s", videoID, configHash)
}

// parseLine extracts the video id and hash. Legacy lines without a
// lang_hash comment yield an empty hash, which never matches a current
// config hash.
func parseLine(line string) (videoID, hash string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, linePrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(line, linePrefix)

	if i := strings.Index(rest, "#"); i >= 0 {
		comment := rest[i+1:]
		rest = rest[:i]
		if j := strings.Index(comment, "lang_hash="); j >= 0 {
			hash = strings.TrimSpace(comment[j+len("lang_hash="):])
		}
	}
	videoID = strings.TrimSpace(rest)
	if videoID == "" {
		return "", "", false
	}
	return videoID, hash, true
}

// Entries loads the archive into a map of video id to the hash of its
// last line. A missing file yields an empty map.
func Entries(path string) (map[string]string, error) {
	lines, err := fs.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	entries := make(map[string]string, len(lines))
	for _, line := range lines {
		if id, hash, ok := parseLine(line); ok {
			entries[id] = hash
		}
	}
	return entries, nil
}

// FilterUnprocessed returns the ids that still need processing under
// configHash. force or a missing archive passes everything through.
// Order of the input is preserved.
func FilterUnprocessed(videoIDs []string, path string, force bool, configHash string) ([]string, error) {
	if force || path == "" || !fs.Exists(path) {
		return videoIDs, nil
	}

	entries, err := Entries(path)
	if err != nil {
		return nil, err
	}

	var out []string
	skipped := 0
	for _, id := range videoIDs {
		if hash, found := entries[id]; found && hash == configHash {
			skipped++
			continue
		}
		out = append(out, id)
	}
	if skipped > 0 {
		logger := log.WithComponent("archive")
		logger.Info().
			Str("event", "archive.filtered").
			Str("path", path).
			Int("skipped", skipped).
			Int("remaining", len(out)).
			Msg("archive filtered already-processed videos")
	}
	return out, nil
}

// MarkProcessed appends the record for videoID under configHash. The
// append is line-atomic; concurrent appenders from other processes
// produce duplicates which Entries dedups on read.
func MarkProcessed(path, videoID, configHash string) error {
	if path == "" {
		return nil
	}
	return fs.AppendLine(path, FormatLine(videoID, configHash))
}

// ChannelArchiveName returns the archive file name for a channel
// source.
func ChannelArchiveName(channelID string) string {
	return channelID + ".txt"
}

// PlaylistArchiveName returns the archive file name for a playlist
// source.
func PlaylistArchiveName(playlistID string) string {
	return "playlist_" + playlistID + ".txt"
}

// BatchArchiveName returns the once-per-run archive file name for a
// free-form URL list.
func BatchArchiveName(now time.Time) string {
	return "batch_" + now.Format("20060102_150405") + ".txt"
}

// MigrateLegacy merges legacy archive files (pre-hash era) into
// <archiveDir>/migrated_archive.txt with lines deduplicated and
// sorted, backs each legacy file up as .bak next to it, and removes
// the original. Running it again with no legacy files is a no-op.
func MigrateLegacy(archiveDir string, legacyPaths []string) error {
	var present []string
	for _, p := range legacyPaths {
		if fs.Exists(p) {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := fs.EnsureDir(archiveDir); err != nil {
		return err
	}
	target := filepath.Join(archiveDir, "migrated_archive.txt")

	seen := make(map[string]struct{})
	addFrom := func(path string) error {
		lines, err := fs.ReadLines(path)
		if err != nil {
			return fmt.Errorf("read legacy archive %s: %w", path, err)
		}
		for _, line := range lines {
			seen[line] = struct{}{}
		}
		return nil
	}

	// Existing migrated content participates in the dedup.
	if fs.Exists(target) {
		if err := addFrom(target); err != nil {
			return err
		}
	}
	for _, p := range present {
		if err := addFrom(p); err != nil {
			return err
		}
	}

	merged := make([]string, 0, len(seen))
	for line := range seen {
		merged = append(merged, line)
	}
	sort.Strings(merged)

	body := strings.Join(merged, "\n")
	if body != "" {
		body += "\n"
	}
	if err := fs.WriteFileAtomic(target, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write migrated archive: %w", err)
	}

	for _, p := range present {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("back up legacy archive %s: %w", p, err)
		}
		if err := fs.WriteFileAtomic(p+".bak", data, 0o644); err != nil {
			return err
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove legacy archive %s: %w", p, err)
		}
		logger := log.WithComponent("archive")
		logger.Info().
			Str("event", "archive.migrated").
			Str("path", p).
			Str("target", target).
			Msg("legacy archive migrated")
	}
	return nil
}

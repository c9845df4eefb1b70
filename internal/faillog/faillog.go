// SPDX-License-Identifier: MIT

// Package faillog records terminal failures into three sinks: a
// human-readable detail log, a deduplicated flat URL list for easy
// re-submission, and a JSONL record stream for programmatic use.
package faillog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
)

// Sink file names, relative to the output directory.
const (
	DetailLogName   = "failed_detail.log"
	URLListName     = "failed_urls.txt"
	RecordsJSONName = "failed_records.json"
)

// Record is one failure, serialized as a single JSONL object.
type Record struct {
	VideoID     string    `json:"video_id"`
	URL         string    `json:"url"`
	Stage       string    `json:"stage"`
	ErrorType   string    `json:"error_type"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id,omitempty"`
	ChannelID   string    `json:"channel_id,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
}

// Logger appends failure records under one directory. Safe for
// concurrent use; each sink write is line-granular so readers never
// observe partial lines.
type Logger struct {
	dir string

	mu       sync.Mutex
	seenURLs map[string]struct{}
}

// New creates a logger writing into dir. Sinks are created lazily on
// the first failure.
func New(dir string) *Logger {
	return &Logger{dir: dir}
}

func (l *Logger) path(name string) string {
	return filepath.Join(l.dir, name)
}

// Log writes rec to all three sinks. A zero Timestamp is filled with
// the current time. The URL list is deduplicated against both this
// process and existing file content.
func (l *Logger) Log(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ErrorType == "" {
		rec.ErrorType = string(errclass.Unknown)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := fs.EnsureDir(l.dir); err != nil {
		return err
	}

	if err := fs.AppendLine(l.path(DetailLogName), l.detailLine(rec)); err != nil {
		return fmt.Errorf("append detail log: %w", err)
	}

	if rec.URL != "" {
		fresh, err := l.urlUnseenLocked(rec.URL)
		if err != nil {
			return err
		}
		if fresh {
			if err := fs.AppendLine(l.path(URLListName), rec.URL); err != nil {
				return fmt.Errorf("append url list: %w", err)
			}
			l.seenURLs[rec.URL] = struct{}{}
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode failure record: %w", err)
	}
	if err := fs.AppendLine(l.path(RecordsJSONName), string(data)); err != nil {
		return fmt.Errorf("append failure records: %w", err)
	}

	logger := log.WithComponent("faillog")
	logger.Debug().
		Str("event", "faillog.recorded").
		Str(log.FieldVideoID, rec.VideoID).
		Str(log.FieldStage, rec.Stage).
		Str(log.FieldErrorType, rec.ErrorType).
		Msg("failure recorded")
	return nil
}

func (l *Logger) detailLine(rec Record) string {
	runID := rec.RunID
	if runID == "" {
		runID = "-"
	}
	return fmt.Sprintf("[%s] [batch:%s] [video:%s] %s error=%s msg=%s stage=%s",
		rec.Timestamp.Format(time.RFC3339),
		runID,
		rec.VideoID,
		rec.URL,
		rec.ErrorType,
		rec.Reason,
		rec.Stage,
	)
}

// urlUnseenLocked reports whether url is new, loading the existing
// list on first use.
func (l *Logger) urlUnseenLocked(url string) (bool, error) {
	if l.seenURLs == nil {
		lines, err := fs.ReadLines(l.path(URLListName))
		if err != nil {
			return false, fmt.Errorf("read url list: %w", err)
		}
		l.seenURLs = make(map[string]struct{}, len(lines))
		for _, line := range lines {
			l.seenURLs[line] = struct{}{}
		}
	}
	_, seen := l.seenURLs[url]
	return !seen, nil
}

// ReadRecords decodes all JSONL records from dir. Used by tests and
// resume tooling; unknown lines are skipped.
func ReadRecords(dir string) ([]Record, error) {
	lines, err := fs.ReadLines(filepath.Join(dir, RecordsJSONName))
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, line := range lines {
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SPDX-License-Identifier: MIT

package chunk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// progressState is the persisted form of a tracker.
type progressState struct {
	VideoID     string    `json:"video_id"`
	Lang        string    `json:"lang"`
	TotalChunks int       `json:"total_chunks"`
	Completed   []int     `json:"completed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tracker records per-chunk translation completion for one
// (video, target language) pair. A chunk counts as completed only
// after its translated SRT has been cached to disk AND the progress
// file has been flushed; anything less is discarded on restart.
type Tracker struct {
	mu        sync.Mutex
	videoID   string
	lang      string
	dir       string
	total     int
	completed map[int]struct{}
}

// NewTracker creates a tracker persisting under dir (the video's temp
// directory). total is the number of chunks the splitter produced.
func NewTracker(dir, videoID, lang string, total int) *Tracker {
	return &Tracker{
		videoID:   videoID,
		lang:      lang,
		dir:       dir,
		total:     total,
		completed: make(map[int]struct{}),
	}
}

func (t *Tracker) progressPath() string {
	return filepath.Join(t.dir, fmt.Sprintf(".chunk_progress.%s.json", t.lang))
}

// ChunkPath returns the cache file for one translated chunk. The
// language is part of the name: one video may translate into several
// targets out of the same temp directory.
func (t *Tracker) ChunkPath(index int) string {
	return filepath.Join(t.dir, fmt.Sprintf("chunk_%s_%04d.srt", t.lang, index))
}

// Restore loads prior progress. Progress recorded against a different
// chunk total (thresholds changed between runs) is discarded: the
// chunk boundaries no longer line up, so none of it is reusable.
func (t *Tracker) Restore() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := fs.ReadFile(t.progressPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read chunk progress: %w", err)
	}

	var state progressState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode chunk progress: %w", err)
	}

	if state.TotalChunks != t.total {
		log.WithComponent("chunk").Warn().
			Str("event", "tracker.progress_discarded").
			Str(log.FieldVideoID, t.videoID).
			Str("lang", t.lang).
			Int("stored_total", state.TotalChunks).
			Int("current_total", t.total).
			Msg("chunk layout changed, discarding stored progress")
		return nil
	}

	for _, idx := range state.Completed {
		if idx >= 0 && idx < t.total {
			// Trust the index only if its cached chunk file survived.
			if _, err := os.Stat(t.ChunkPath(idx)); err == nil {
				t.completed[idx] = struct{}{}
			}
		}
	}
	return nil
}

// MarkCompleted caches the translated SRT for index and records it as
// done. Calling it again for a completed index is a no-op.
func (t *Tracker) MarkCompleted(index int, translatedSRT string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= t.total {
		return fmt.Errorf("chunk index %d out of range [0,%d)", index, t.total)
	}
	if _, done := t.completed[index]; done {
		return nil
	}

	if err := fs.WriteFileAtomic(t.ChunkPath(index), []byte(translatedSRT), 0o644); err != nil {
		return fmt.Errorf("cache chunk %d: %w", index, err)
	}

	t.completed[index] = struct{}{}
	if err := t.persistLocked(); err != nil {
		delete(t.completed, index)
		return err
	}
	return nil
}

// Pending returns the chunk indices not yet completed, ascending.
func (t *Tracker) Pending() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []int
	for i := 0; i < t.total; i++ {
		if _, done := t.completed[i]; !done {
			pending = append(pending, i)
		}
	}
	return pending
}

// IsCompleted reports whether index is done.
func (t *Tracker) IsCompleted(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, done := t.completed[index]
	return done
}

// Status returns total and completed counts.
func (t *Tracker) Status() (total, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, len(t.completed)
}

// Completed returns the sorted completed indices.
func (t *Tracker) Completed() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedLocked()
}

func (t *Tracker) completedLocked() []int {
	out := make([]int, 0, len(t.completed))
	for idx := range t.completed {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (t *Tracker) persistLocked() error {
	state := progressState{
		VideoID:     t.videoID,
		Lang:        t.lang,
		TotalChunks: t.total,
		Completed:   t.completedLocked(),
		UpdatedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk progress: %w", err)
	}
	if err := fs.WriteFileAtomic(t.progressPath(), data, 0o644); err != nil {
		return fmt.Errorf("persist chunk progress: %w", err)
	}
	return nil
}

// Assemble reads all cached chunk files in order, reparses them and
// returns one SRT with cues renumbered from 1. It fails if any chunk
// is missing or unparseable.
func (t *Tracker) Assemble() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.completed) != t.total {
		return "", fmt.Errorf("assemble: %d of %d chunks completed", len(t.completed), t.total)
	}

	var all []subtitle.Cue
	for i := 0; i < t.total; i++ {
		data, err := fs.ReadFile(t.ChunkPath(i))
		if err != nil {
			return "", fmt.Errorf("read chunk %d: %w", i, err)
		}
		cues, err := subtitle.Parse(string(data))
		if err != nil {
			return "", fmt.Errorf("parse chunk %d: %w", i, err)
		}
		all = append(all, cues...)
	}
	return subtitle.Format(all), nil
}

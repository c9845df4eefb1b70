// SPDX-License-Identifier: MIT

// Package manifest persists batch and per-video pipeline state. One
// JSON file per batch, written atomically; an optional dirty-flag
// timer batches frequent saves.
package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
)

// Stage is a video's position in the pipeline. Transitions are
// forward-only; failed and skipped are terminal from any non-terminal
// stage; pending is only ever an initial (or reset) state.
type Stage string

const (
	StagePending     Stage = "pending"
	StageDetecting   Stage = "detecting"
	StageDownloading Stage = "downloading"
	StageTranslating Stage = "translating"
	StageSummarizing Stage = "summarizing"
	StageOutputting  Stage = "outputting"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
	StageSkipped     Stage = "skipped"
)

var stageOrder = map[Stage]int{
	StagePending:     0,
	StageDetecting:   1,
	StageDownloading: 2,
	StageTranslating: 3,
	StageSummarizing: 4,
	StageOutputting:  5,
	StageDone:        6,
}

// Valid reports membership in the closed stage set.
func (s Stage) Valid() bool {
	if _, ok := stageOrder[s]; ok {
		return true
	}
	return s == StageFailed || s == StageSkipped
}

// Terminal reports whether no further transitions are allowed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed || s == StageSkipped
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Stage) CanTransitionTo(next Stage) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if next == StageFailed || next == StageSkipped {
		return true
	}
	if next == StagePending {
		return false
	}
	return stageOrder[next] > stageOrder[s]
}

// Video is the per-video manifest entry.
type Video struct {
	VideoID         string            `json:"video_id"`
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	Stage           Stage             `json:"stage"`
	Error           string            `json:"error,omitempty"`
	ErrorType       string            `json:"error_type,omitempty"`
	Retries         int               `json:"retries"`
	CompletedChunks []int             `json:"completed_chunks"`
	OutputFiles     map[string]string `json:"output_files,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
}

// Batch is one run's manifest: a set of videos keyed by video id.
type Batch struct {
	BatchID     string            `json:"batch_id"`
	Source      string            `json:"source"`
	TotalVideos int               `json:"total_videos"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Videos      map[string]*Video `json:"videos"`
}

// AddVideo registers a video in pending state. Adding an existing id
// is an error: each video appears at most once per batch.
func (b *Batch) AddVideo(videoID, url, title string) error {
	if _, exists := b.Videos[videoID]; exists {
		return fmt.Errorf("video %s already in batch %s", videoID, b.BatchID)
	}
	b.Videos[videoID] = &Video{
		VideoID:         videoID,
		URL:             url,
		Title:           title,
		Stage:           StagePending,
		CompletedChunks: []int{},
	}
	b.TotalVideos = len(b.Videos)
	return nil
}

// Video returns the entry for id, or nil.
func (b *Batch) Video(id string) *Video {
	return b.Videos[id]
}

// CountByStage returns how many videos sit in each stage.
func (b *Batch) CountByStage() map[Stage]int {
	out := make(map[Stage]int)
	for _, v := range b.Videos {
		out[v.Stage]++
	}
	return out
}

// Validate checks the manifest's structural invariants.
func (b *Batch) Validate() error {
	if b.BatchID == "" {
		return fmt.Errorf("batch_id must not be empty")
	}
	if b.TotalVideos != len(b.Videos) {
		return fmt.Errorf("batch %s: total_videos=%d but %d videos present",
			b.BatchID, b.TotalVideos, len(b.Videos))
	}
	for id, v := range b.Videos {
		if v.VideoID != id {
			return fmt.Errorf("batch %s: key %s holds video_id %s", b.BatchID, id, v.VideoID)
		}
		if !v.Stage.Valid() {
			return fmt.Errorf("video %s: invalid stage %q", id, v.Stage)
		}
		if (v.ErrorType != "") != (v.Stage == StageFailed) {
			return fmt.Errorf("video %s: error_type present iff stage is failed", id)
		}
		if v.ErrorType != "" && !errclass.Type(v.ErrorType).Valid() {
			return fmt.Errorf("video %s: unknown error_type %q", id, v.ErrorType)
		}
	}
	return nil
}

// mergeChunk inserts index into the sorted unique completed set.
func mergeChunk(chunks []int, index int) []int {
	pos := sort.SearchInts(chunks, index)
	if pos < len(chunks) && chunks[pos] == index {
		return chunks
	}
	chunks = append(chunks, 0)
	copy(chunks[pos+1:], chunks[pos:])
	chunks[pos] = index
	return chunks
}

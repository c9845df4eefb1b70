// SPDX-License-Identifier: MIT

package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
)

const manifestSuffix = ".manifest.json"

// ErrCorrupt marks a manifest file that exists but cannot be decoded.
// Decode failures are final: the caller treats the batch as absent.
var ErrCorrupt = errors.New("manifest corrupt")

// DefaultFlushInterval is the dirty-flag autosave period.
const DefaultFlushInterval = 5 * time.Second

// Store reads and writes batch manifests under one state directory.
// A single mutex guards both the dirty set and file IO.
type Store struct {
	dir      string
	autoSave bool
	interval time.Duration

	mu    sync.Mutex
	dirty map[string]*Batch

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithAutoSave toggles the background flush timer (on by default).
func WithAutoSave(enabled bool) Option {
	return func(s *Store) { s.autoSave = enabled }
}

// WithFlushInterval overrides the autosave period.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewStore creates the state directory if needed and starts the
// autosave timer unless disabled. Callers must Shutdown to stop it.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, err
	}
	s := &Store{
		dir:      dir,
		autoSave: true,
		interval: DefaultFlushInterval,
		dirty:    make(map[string]*Batch),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.autoSave {
		go s.flushLoop()
	} else {
		close(s.doneCh)
	}
	return s, nil
}

func (s *Store) flushLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				logger := log.WithComponent("manifest")
				logger.Error().
					Str("event", "store.autosave_failed").
					Err(err).
					Msg("autosave flush failed")
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) path(batchID string) string {
	return filepath.Join(s.dir, batchID+manifestSuffix)
}

// CreateBatch returns a fresh manifest for batchID. Nothing is written
// until the first save.
func (s *Store) CreateBatch(batchID, source string) *Batch {
	now := time.Now().UTC()
	return &Batch{
		BatchID:   batchID,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
		Videos:    make(map[string]*Video),
	}
}

// LoadBatch reads a batch manifest. A missing file yields (nil, nil).
// An undecodable file yields ErrCorrupt; per policy this is never
// retried.
func (s *Store) LoadBatch(batchID string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := fs.ReadFile(s.path(batchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", batchID, err)
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, batchID, err)
	}
	if b.Videos == nil {
		b.Videos = make(map[string]*Video)
	}
	return &b, nil
}

// SaveBatch persists the manifest. With immediate=false and autosave
// enabled it only marks the batch dirty; the timer flushes within one
// interval. Without autosave every save is synchronous.
func (s *Store) SaveBatch(b *Batch, immediate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !immediate {
		return s.commitLocked(b)
	}
	delete(s.dirty, b.BatchID)
	return s.writeLocked(b)
}

// commitLocked records a mutation: dirty-mark under autosave,
// synchronous write otherwise.
func (s *Store) commitLocked(b *Batch) error {
	if s.autoSave {
		s.dirty[b.BatchID] = b
		return nil
	}
	delete(s.dirty, b.BatchID)
	return s.writeLocked(b)
}

func (s *Store) writeLocked(b *Batch) error {
	b.UpdatedAt = time.Now().UTC()
	b.TotalVideos = len(b.Videos)

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		metrics.IncManifestSave(err)
		return fmt.Errorf("encode manifest %s: %w", b.BatchID, err)
	}
	err = fs.WriteFileAtomic(s.path(b.BatchID), data, 0o644)
	metrics.IncManifestSave(err)
	if err != nil {
		return fmt.Errorf("write manifest %s: %w", b.BatchID, err)
	}
	return nil
}

// UpdateVideoStage moves a video forward and marks the batch dirty.
// Illegal transitions are rejected.
func (s *Store) UpdateVideoStage(b *Batch, videoID string, stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := b.Video(videoID)
	if v == nil {
		return fmt.Errorf("video %s not in batch %s", videoID, b.BatchID)
	}
	if !v.Stage.CanTransitionTo(stage) {
		return fmt.Errorf("video %s: illegal transition %s -> %s", videoID, v.Stage, stage)
	}

	now := time.Now().UTC()
	if v.Stage == StagePending {
		v.StartedAt = &now
	}
	v.Stage = stage
	v.UpdatedAt = &now
	if stage != StageFailed {
		v.Error = ""
		v.ErrorType = ""
	}
	return s.commitLocked(b)
}

// MarkVideoFailed sets the terminal failed state with its
// classification and saves immediately: failures must survive a crash.
func (s *Store) MarkVideoFailed(b *Batch, videoID, reason string, et errclass.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := b.Video(videoID)
	if v == nil {
		return fmt.Errorf("video %s not in batch %s", videoID, b.BatchID)
	}
	now := time.Now().UTC()
	v.Stage = StageFailed
	v.Error = reason
	v.ErrorType = string(et)
	v.UpdatedAt = &now
	delete(s.dirty, b.BatchID)
	return s.writeLocked(b)
}

// AddCompletedChunk records chunk completion; the set only grows.
func (s *Store) AddCompletedChunk(b *Batch, videoID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := b.Video(videoID)
	if v == nil {
		return fmt.Errorf("video %s not in batch %s", videoID, b.BatchID)
	}
	v.CompletedChunks = mergeChunk(v.CompletedChunks, index)
	now := time.Now().UTC()
	v.UpdatedAt = &now
	return s.commitLocked(b)
}

// SetOutputFiles records the final artifact paths for a video.
func (s *Store) SetOutputFiles(b *Batch, videoID string, files map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := b.Video(videoID)
	if v == nil {
		return fmt.Errorf("video %s not in batch %s", videoID, b.BatchID)
	}
	v.OutputFiles = files
	return s.commitLocked(b)
}

// ResetVideo returns a video to pending for re-processing, clearing
// error state but keeping completed chunks (chunk work is reusable)
// and bumping the retry counter.
func (s *Store) ResetVideo(b *Batch, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := b.Video(videoID)
	if v == nil {
		return fmt.Errorf("video %s not in batch %s", videoID, b.BatchID)
	}
	now := time.Now().UTC()
	v.Stage = StagePending
	v.Error = ""
	v.ErrorType = ""
	v.Retries++
	v.UpdatedAt = &now
	return s.commitLocked(b)
}

// ListBatches returns the batch ids present in the state directory,
// sorted ascending (their ids are timestamps, so oldest first).
func (s *Store) ListBatches() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list state dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasSuffix(name, manifestSuffix) {
			ids = append(ids, strings.TrimSuffix(name, manifestSuffix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteBatch removes a batch manifest file and any dirty reference.
func (s *Store) DeleteBatch(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dirty, batchID)
	if err := os.Remove(s.path(batchID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete manifest %s: %w", batchID, err)
	}
	return nil
}

// Flush synchronously writes all dirty batches.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, b := range s.dirty {
		if err := s.writeLocked(b); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(s.dirty, id)
	}
	return firstErr
}

// Shutdown stops the autosave timer and performs a final flush.
func (s *Store) Shutdown() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return s.Flush()
}

// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
)

// ProfileHolder holds the AI profiles with atomic reloading. Changing
// ai_profiles.json mid-batch takes effect for the next LLM request
// without a restart; an invalid file keeps the previous profiles.
type ProfileHolder struct {
	mu      sync.RWMutex
	current *Profiles
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewProfileHolder loads profiles from path (defaults when the file
// is missing).
func NewProfileHolder(path string) (*ProfileHolder, error) {
	ps, err := LoadProfiles(path)
	if err != nil {
		return nil, err
	}
	return &ProfileHolder{
		current: ps,
		path:    path,
		logger:  log.WithComponent("llm"),
	}, nil
}

// Get returns the current profiles.
func (h *ProfileHolder) Get() *Profiles {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// ForTask resolves the effective profile for a task from the current
// profiles.
func (h *ProfileHolder) ForTask(task Task) Profile {
	return h.Get().ForTask(task)
}

// Reload re-reads the profile file. On failure the old profiles stay
// in effect.
func (h *ProfileHolder) Reload() error {
	ps, err := LoadProfiles(h.path)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "llm.profiles_reload_failed").
			Str(log.FieldPath, h.path).
			Msg("profile reload failed, keeping previous profiles")
		return err
	}

	h.mu.Lock()
	h.current = ps
	h.mu.Unlock()

	h.logger.Info().
		Str("event", "llm.profiles_reloaded").
		Str(log.FieldPath, h.path).
		Msg("AI profiles reloaded")
	return nil
}

// StartWatcher watches the profile file for changes. No-op when no
// path is configured.
func (h *ProfileHolder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the file itself; editors that replace the file emit
	// Create on the same path.
	if err := watcher.Add(h.path); err != nil {
		_ = watcher.Close()
		h.logger.Debug().
			Err(err).
			Str("event", "llm.profiles_watch_skipped").
			Str(log.FieldPath, h.path).
			Msg("profile file not watchable, hot reload disabled")
		return nil
	}

	h.watcher = watcher
	h.logger.Info().
		Str("event", "llm.profiles_watching").
		Str(log.FieldPath, h.path).
		Msg("watching AI profiles for changes")

	go h.watchLoop(ctx)
	return nil
}

func (h *ProfileHolder) watchLoop(ctx context.Context) {
	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					_ = h.Reload()
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "llm.profiles_watch_error").
				Msg("profile watcher error")
		}
	}
}

// Stop closes the watcher if one is running.
func (h *ProfileHolder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// SPDX-License-Identifier: MIT

// Package transcache persists exact-match translation results in
// SQLite so re-runs and overlapping batches never pay twice for the
// same cue. Keys are content hashes supplied by the caller; the store
// knows nothing about languages or models.
package transcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/persistence/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	last_used  TEXT NOT NULL
);
`

// Store is a sqlite-backed translation cache. Safe for concurrent use;
// writer serialization comes from the connection pool limit.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	cfg := sqlite.DefaultConfig()
	// Translate workers write concurrently; one writer connection plus
	// WAL readers keeps SQLITE_BUSY out of the hot path.
	cfg.MaxOpenConns = 4

	db, err := sqlite.Open(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("transcache: create schema: %w", err)
	}

	logger := log.WithComponent("transcache")
	logger.Debug().
		Str("event", "transcache.opened").
		Str(log.FieldPath, path).
		Msg("translation cache opened")
	return &Store{db: db}, nil
}

// Get returns the cached translation for key. The second return is
// false on a miss; lookups refresh last_used so pruning keeps hot
// entries.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM translations WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("transcache: get: %w", err)
	}

	// Best effort; a failed touch never fails the lookup.
	_, _ = s.db.ExecContext(ctx, `UPDATE translations SET last_used = ? WHERE key = ?`,
		time.Now().UTC().Format(time.RFC3339), key)
	return value, true, nil
}

// Put stores or refreshes one translation.
func (s *Store) Put(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO translations (key, value, created_at, last_used) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, last_used = excluded.last_used`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("transcache: put: %w", err)
	}
	return nil
}

// Prune removes entries not used within maxAge and returns how many
// were dropped.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `DELETE FROM translations WHERE last_used < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("transcache: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transcache: prune count: %w", err)
	}
	return n, nil
}

// Len returns the number of cached translations.
func (s *Store) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("transcache: count: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

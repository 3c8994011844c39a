// Package history persists build records and document content
// fingerprints in SQLite, enabling the history command and incremental
// conversion skips.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docpress/internal/report"
)

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// BuildRecord is one persisted build summary.
type BuildRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Documents int
	Succeeded int
	Failed    int
	Skipped   int
	Outcome   string
}

// Open opens (or creates) the store. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: serializes writers and keeps :memory: databases from
	// splitting across pooled connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		documents INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		outcome TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);

	CREATE TABLE IF NOT EXISTS fingerprints (
		document_id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBuild persists a finished build's summary.
func (s *Store) RecordBuild(ctx context.Context, b *report.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, started_at, duration_ms, documents, succeeded, failed, skipped, outcome) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.StartedAt.Unix(), b.Duration.Milliseconds(), b.Documents, b.Succeeded(), b.Failed(), b.Skipped(), b.Outcome(),
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// RecentBuilds returns the latest builds, newest first.
func (s *Store) RecentBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, duration_ms, documents, succeeded, failed, skipped, outcome FROM builds ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []BuildRecord
	for rows.Next() {
		var r BuildRecord
		var startedAt int64
		var durationMS int64
		if err := rows.Scan(&r.ID, &startedAt, &durationMS, &r.Documents, &r.Succeeded, &r.Failed, &r.Skipped, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// Fingerprint returns the stored content fingerprint for a document id.
func (s *Store) Fingerprint(ctx context.Context, docID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fp string
	err := s.db.QueryRowContext(ctx,
		"SELECT fingerprint FROM fingerprints WHERE document_id = ?", docID,
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query fingerprint: %w", err)
	}
	return fp, true, nil
}

// SetFingerprint upserts the fingerprint for a document id.
func (s *Store) SetFingerprint(ctx context.Context, docID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (document_id, fingerprint, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		docID, fingerprint, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert fingerprint: %w", err)
	}
	return nil
}

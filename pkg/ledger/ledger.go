// Package ledger keeps a sqlite audit trail of voice assignments and
// synthesis jobs, for cost tracking and reproducibility.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// Ledger wraps the sqlite connection.
type Ledger struct {
	db *sql.DB
}

// Assignment is one recorded profile-to-voice decision.
type Assignment struct {
	ProfileID string
	VoiceID   string
	VoiceName string
	Strategy  string
	CreatedAt time.Time
}

// Job is one completed synthesis run.
type Job struct {
	ID         string
	ProfileID  string
	VoiceID    string
	ModelID    string
	ChunkCount int
	ByteCount  int
	Duration   time.Duration
	CreatedAt  time.Time
}

// Open opens (creating if needed) the ledger database.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	// WAL for concurrency, single connection to avoid SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migration failed: %w", err)
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS assignments (
			profile_id TEXT PRIMARY KEY,
			voice_id   TEXT NOT NULL,
			voice_name TEXT,
			strategy   TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			profile_id  TEXT,
			voice_id    TEXT NOT NULL,
			model_id    TEXT,
			chunk_count INTEGER,
			byte_count  INTEGER,
			duration_ms INTEGER,
			created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_profile ON jobs(profile_id)`,
	}
	for _, q := range queries {
		if _, err := l.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignment upserts the assignment for a profile.
func (l *Ledger) RecordAssignment(ctx context.Context, a Assignment) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO assignments (profile_id, voice_id, voice_name, strategy)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET
			voice_id = excluded.voice_id,
			voice_name = excluded.voice_name,
			strategy = excluded.strategy`,
		a.ProfileID, a.VoiceID, a.VoiceName, a.Strategy)
	return err
}

// GetAssignment returns the recorded assignment for a profile, or nil.
func (l *Ledger) GetAssignment(ctx context.Context, profileID string) (*Assignment, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT profile_id, voice_id, voice_name, strategy, created_at
		 FROM assignments WHERE profile_id = ?`, profileID)

	var a Assignment
	var name, strategy sql.NullString
	err := row.Scan(&a.ProfileID, &a.VoiceID, &name, &strategy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	a.VoiceName = name.String
	a.Strategy = strategy.String
	return &a, nil
}

// RecordJob stores a completed synthesis run.
func (l *Ledger) RecordJob(ctx context.Context, j Job) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO jobs (id, profile_id, voice_id, model_id, chunk_count, byte_count, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ProfileID, j.VoiceID, j.ModelID, j.ChunkCount, j.ByteCount, j.Duration.Milliseconds())
	return err
}

// RecentJobs returns the newest jobs, newest first.
func (l *Ledger) RecentJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, profile_id, voice_id, model_id, chunk_count, byte_count, duration_ms, created_at
		 FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var profileID, modelID sql.NullString
		var durationMs int64
		if err := rows.Scan(&j.ID, &profileID, &j.VoiceID, &modelID, &j.ChunkCount, &j.ByteCount, &durationMs, &j.CreatedAt); err != nil {
			return nil, err
		}
		j.ProfileID = profileID.String
		j.ModelID = modelID.String
		j.Duration = time.Duration(durationMs) * time.Millisecond
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Totals returns aggregate job counters.
func (l *Ledger) Totals(ctx context.Context) (jobs int, bytes int64, err error) {
	row := l.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(byte_count), 0) FROM jobs`)
	err = row.Scan(&jobs, &bytes)
	return jobs, bytes, err
}

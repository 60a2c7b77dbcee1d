// Package store keeps a SQLite catalog of saved attempts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoAttempts is returned by Latest when a reference has no attempts.
var ErrNoAttempts = errors.New("no attempts recorded")

// Attempt describes one WAV file saved in the recordings directory.
type Attempt struct {
	ID         int64
	Reference  string
	Path       string
	Samples    int
	SampleRate int
	Duration   time.Duration
	Peak       float64
	CreatedAt  time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog at path. ":memory:" gives a private
// in-memory catalog.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func createTables(db *sql.DB) error {
	const attempts = `
    CREATE TABLE IF NOT EXISTS attempts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        reference TEXT NOT NULL,
        path TEXT NOT NULL UNIQUE,
        samples INTEGER NOT NULL,
        sample_rate INTEGER NOT NULL,
        duration_ms INTEGER NOT NULL,
        peak REAL NOT NULL,
        created_at INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS attempts_reference ON attempts (reference, created_at);
    `
	if _, err := db.Exec(attempts); err != nil {
		return fmt.Errorf("create attempts table: %w", err)
	}
	return nil
}

// AddAttempt records a and returns its ID. A zero CreatedAt is set to now.
func (s *Store) AddAttempt(ctx context.Context, a Attempt) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (reference, path, samples, sample_rate, duration_ms, peak, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Reference, a.Path, a.Samples, a.SampleRate, a.Duration.Milliseconds(), a.Peak, a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("add attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("attempt id: %w", err)
	}
	return id, nil
}

// Attempts lists the attempts for reference, oldest first. An empty
// reference lists all attempts.
func (s *Store) Attempts(ctx context.Context, reference string) ([]Attempt, error) {
	query := `SELECT id, reference, path, samples, sample_rate, duration_ms, peak, created_at FROM attempts`
	var args []any
	if reference != "" {
		query += ` WHERE reference = ?`
		args = append(args, reference)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Latest returns the most recent attempt for reference.
func (s *Store) Latest(ctx context.Context, reference string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference, path, samples, sample_rate, duration_ms, peak, created_at
         FROM attempts WHERE reference = ? ORDER BY created_at DESC, id DESC LIMIT 1`, reference)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("%w for %q", ErrNoAttempts, reference)
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(sc scanner) (Attempt, error) {
	var (
		a          Attempt
		durationMS int64
		createdMS  int64
	)
	err := sc.Scan(&a.ID, &a.Reference, &a.Path, &a.Samples, &a.SampleRate, &durationMS, &a.Peak, &createdMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, err
		}
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.Duration = time.Duration(durationMS) * time.Millisecond
	a.CreatedAt = time.UnixMilli(createdMS)
	return a, nil
}

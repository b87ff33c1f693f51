// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runlog keeps a SQLite ledger of harvest runs so operators can see
// what was harvested when, and with what outcome.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperharvest/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "harvest.db"
)

// Run is one recorded partition run.
type Run struct {
	ID         int64
	Source     string
	Year       int
	StartedAt  time.Time
	FinishedAt time.Time
	Reused     int
	Retried    int
	Parsed     int
	Skipped    int
	Outcome    string
}

// Store manages the run ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at dataDir/index/harvest.db, creating
// the schema if it does not exist.
func Open(dataDir string) (*Store, error) {
	dbDir := filepath.Join(dataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			year INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			reused INTEGER NOT NULL,
			retried INTEGER NOT NULL,
			parsed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			outcome TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_partition ON runs(source, year)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one run to the ledger.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (source, year, started_at, finished_at, reused, retried, parsed, skipped, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Source, r.Year,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Reused, r.Retried, r.Parsed, r.Skipped, r.Outcome,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first. A non-positive limit
// defaults to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, year, started_at, finished_at, reused, retried, parsed, skipped, outcome
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Source, &r.Year, &started, &finished,
			&r.Reused, &r.Retried, &r.Parsed, &r.Skipped, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ForPartition returns every recorded run of one partition, newest first.
func (s *Store) ForPartition(ctx context.Context, p types.Partition) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, year, started_at, finished_at, reused, retried, parsed, skipped, outcome
		 FROM runs WHERE source = ? AND year = ? ORDER BY id DESC`,
		p.Source, p.Year)
	if err != nil {
		return nil, fmt.Errorf("querying runs for %s: %w", p, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Source, &r.Year, &started, &finished,
			&r.Reused, &r.Retried, &r.Parsed, &r.Skipped, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

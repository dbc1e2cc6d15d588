// Package sqlite persists run history in a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/harvestlab/topic-harvester/internal/history"
)

// DefaultFileName is the database file name used when configuration does not
// name one.
const DefaultFileName = "harvester_history.db"

const defaultRecentLimit = 20

// Repo implements history.Repository on the pure-Go SQLite driver.
type Repo struct {
	db   *sql.DB
	path string
}

var _ history.Repository = (*Repo)(nil)

// Open opens or creates the history database at path, creating parent
// directories as needed.
func Open(path string) (*Repo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// SQLite supports a single writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	r := &Repo{db: db, path: path}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return r, nil
}

// Path returns the database file location.
func (r *Repo) Path() string {
	return r.path
}

// Close closes the database connection.
func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		topics INTEGER NOT NULL DEFAULT 0,
		requested INTEGER NOT NULL DEFAULT 0,
		discovered INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		appended INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// RecordStart upserts the initial row for a run.
func (r *Repo) RecordStart(ctx context.Context, rec history.RunRecord) error {
	status := rec.Status
	if status == "" {
		status = history.StatusRunning
	}
	query := `
	INSERT INTO runs (run_id, started_at, status, topics, requested)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		started_at = excluded.started_at,
		status = excluded.status,
		topics = excluded.topics,
		requested = excluded.requested
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		unixOf(rec.StartedAt),
		status,
		rec.Topics,
		rec.Requested,
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordFinish completes a run's row with final counters and status. A
// finish for a run that was never started inserts the whole row, so late
// events are not lost.
func (r *Repo) RecordFinish(ctx context.Context, rec history.RunRecord) error {
	query := `
	INSERT INTO runs (run_id, started_at, finished_at, status, topics, requested, discovered, completed, failed, appended, note)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		status = excluded.status,
		discovered = excluded.discovered,
		completed = excluded.completed,
		failed = excluded.failed,
		appended = excluded.appended,
		note = excluded.note
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		unixOf(rec.StartedAt),
		unixOf(rec.FinishedAt),
		rec.Status,
		rec.Topics,
		rec.Requested,
		rec.Discovered,
		rec.Completed,
		rec.Failed,
		rec.Appended,
		rec.Note,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, most recently started first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]history.RunRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	query := selectColumns + `
	ORDER BY started_at DESC, run_id DESC
	LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var records []history.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one run or history.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (history.RunRecord, error) {
	query := selectColumns + ` WHERE run_id = ?`
	rec, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return history.RunRecord{}, history.ErrNotFound
	}
	if err != nil {
		return history.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

const selectColumns = `
	SELECT run_id, started_at, finished_at, status, topics, requested, discovered, completed, failed, appended, note
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (history.RunRecord, error) {
	var rec history.RunRecord
	var started, finished int64
	err := row.Scan(
		&rec.ID,
		&started,
		&finished,
		&rec.Status,
		&rec.Topics,
		&rec.Requested,
		&rec.Discovered,
		&rec.Completed,
		&rec.Failed,
		&rec.Appended,
		&rec.Note,
	)
	if err != nil {
		return history.RunRecord{}, err
	}
	rec.StartedAt = timeOf(started)
	rec.FinishedAt = timeOf(finished)
	return rec, nil
}

// unixOf stores zero times as 0 so they survive the round trip.
func unixOf(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOf(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

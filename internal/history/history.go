// Package history records one bookkeeping row per harvest run so past runs
// can be listed and inspected after the fact.
package history

import (
	"context"
	"errors"
	"time"
)

// Run statuses as persisted.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrNotFound is returned when no run matches the requested ID.
var ErrNotFound = errors.New("history: run not found")

// RunRecord is one harvest run's bookkeeping row.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is still going
	Status     string
	Topics     int64
	Requested  int64
	Discovered int64
	Completed  int64
	Failed     int64
	Appended   int64
	Note       string
}

// Repository persists run records. Implementations must be safe for
// concurrent use.
type Repository interface {
	// RecordStart upserts the initial row for a run.
	RecordStart(ctx context.Context, rec RunRecord) error
	// RecordFinish completes a run's row with final counters and status.
	RecordFinish(ctx context.Context, rec RunRecord) error
	// Recent returns up to limit runs, most recently started first.
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
	// Get returns one run or ErrNotFound.
	Get(ctx context.Context, id string) (RunRecord, error)
	// Close releases underlying resources.
	Close() error
}

// NopRepository discards writes and reports no runs. Used when run history
// is disabled.
type NopRepository struct{}

var _ Repository = NopRepository{}

func (NopRepository) RecordStart(context.Context, RunRecord) error     { return nil }
func (NopRepository) RecordFinish(context.Context, RunRecord) error    { return nil }
func (NopRepository) Recent(context.Context, int) ([]RunRecord, error) { return nil, nil }
func (NopRepository) Get(context.Context, string) (RunRecord, error) {
	return RunRecord{}, ErrNotFound
}
func (NopRepository) Close() error { return nil }

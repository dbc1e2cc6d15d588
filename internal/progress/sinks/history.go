package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harvestlab/topic-harvester/internal/history"
	"github.com/harvestlab/topic-harvester/internal/progress"
)

// HistorySink persists run lifecycle events via a history.Repository so past
// runs stay queryable after the process exits. Fetch and discovery events
// pass through untouched; only run boundaries hit the database.
type HistorySink struct {
	repo   history.Repository
	logger *zap.Logger
}

// NewHistorySink constructs a HistorySink for the provided repository.
func NewHistorySink(repo history.Repository, logger *zap.Logger) *HistorySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistorySink{repo: repo, logger: logger}
}

// Consume forwards run boundaries to the repository. It respects ctx
// deadlines and returns repository errors verbatim so the hub can log them.
func (s *HistorySink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			rec := history.RunRecord{
				ID:        evt.RunUUID().String(),
				StartedAt: evt.TS,
				Status:    history.StatusRunning,
				Topics:    evt.Tally.Topics,
				Requested: evt.Tally.Requested,
			}
			if err := s.repo.RecordStart(ctx, rec); err != nil {
				return fmt.Errorf("record run start: %w", err)
			}
		case progress.StageRunDone, progress.StageRunError:
			status := history.StatusSuccess
			if evt.Stage == progress.StageRunError {
				status = history.StatusError
			}
			rec := history.RunRecord{
				ID: evt.RunUUID().String(),
				// Start time only matters when the start event never
				// arrived; the upsert keeps the original otherwise.
				StartedAt:  evt.TS.Add(-evt.Dur),
				FinishedAt: evt.TS,
				Status:     status,
				Topics:     evt.Tally.Topics,
				Requested:  evt.Tally.Requested,
				Discovered: evt.Tally.Discovered,
				Completed:  evt.Tally.Completed,
				Failed:     evt.Tally.Failed,
				Appended:   evt.Tally.Appended,
				Note:       evt.Note,
			}
			if err := s.repo.RecordFinish(ctx, rec); err != nil {
				return fmt.Errorf("record run finish: %w", err)
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action. The repository
// is owned and closed by the application.
func (s *HistorySink) Close(context.Context) error {
	return nil
}

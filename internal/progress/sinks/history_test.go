package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harvestlab/topic-harvester/internal/history"
	"github.com/harvestlab/topic-harvester/internal/progress"
)

// TestHistorySinkPersistsRunBoundaries ensures start and finish events reach the repository.
func TestHistorySinkPersistsRunBoundaries(t *testing.T) {
	t.Parallel()

	repo := &fakeHistoryRepo{}
	sink := NewHistorySink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	batch := []progress.Event{
		{
			RunID: runID,
			Stage: progress.StageRunStart,
			TS:    now,
			Tally: progress.Tally{Topics: 2, Requested: 20},
		},
		{
			RunID:       runID,
			Stage:       progress.StageFetchDone,
			Site:        "example.com",
			StatusClass: progress.Status2xx,
			TS:          now.Add(time.Second),
		},
		{
			RunID: runID,
			Stage: progress.StageRunDone,
			TS:    now.Add(3 * time.Second),
			Dur:   3 * time.Second,
			Tally: progress.Tally{Topics: 2, Requested: 20, Discovered: 18, Completed: 15, Failed: 3, Appended: 15},
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Len(t, repo.starts, 1)
	require.Equal(t, runUUID.String(), repo.starts[0].ID)
	require.Equal(t, int64(2), repo.starts[0].Topics)
	require.Equal(t, int64(20), repo.starts[0].Requested)

	require.Len(t, repo.finishes, 1)
	finish := repo.finishes[0]
	require.Equal(t, history.StatusSuccess, finish.Status)
	require.Equal(t, int64(18), finish.Discovered)
	require.Equal(t, int64(15), finish.Completed)
	require.Equal(t, int64(3), finish.Failed)
	require.Equal(t, int64(15), finish.Appended)
}

// TestHistorySinkRecordsErrors maps RUN_ERROR to the error status with its note.
func TestHistorySinkRecordsErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeHistoryRepo{}
	sink := NewHistorySink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunError, TS: time.Now(), Note: "search engine unreachable"},
	}))

	require.Len(t, repo.finishes, 1)
	require.Equal(t, history.StatusError, repo.finishes[0].Status)
	require.Equal(t, "search engine unreachable", repo.finishes[0].Note)
}

// TestHistorySinkSurfacesRepositoryErrors returns repository failures to the caller.
func TestHistorySinkSurfacesRepositoryErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeHistoryRepo{fail: true}
	sink := NewHistorySink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())

	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: time.Now()},
	})
	require.Error(t, err)
}

type fakeHistoryRepo struct {
	fail     bool
	starts   []history.RunRecord
	finishes []history.RunRecord
}

func (f *fakeHistoryRepo) RecordStart(_ context.Context, rec history.RunRecord) error {
	if f.fail {
		return assertErr("start")
	}
	f.starts = append(f.starts, rec)
	return nil
}

func (f *fakeHistoryRepo) RecordFinish(_ context.Context, rec history.RunRecord) error {
	if f.fail {
		return assertErr("finish")
	}
	f.finishes = append(f.finishes, rec)
	return nil
}

func (f *fakeHistoryRepo) Recent(context.Context, int) ([]history.RunRecord, error) {
	return nil, assertErr("recent")
}

func (f *fakeHistoryRepo) Get(context.Context, string) (history.RunRecord, error) {
	return history.RunRecord{}, assertErr("get")
}

func (f *fakeHistoryRepo) Close() error { return nil }

type assertErr string

func (e assertErr) Error() string { return string(e) }

// Package engine drives a full harvest run from topic discovery to dataset
// output.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/progress"
)

// Config controls how a run distributes and paces its work.
type Config struct {
	// TotalURLs is the discovery target across all topics. Each topic is
	// searched for TotalURLs divided by the topic count, rounded down.
	TotalURLs int
	// TopicJitter is slept between consecutive topic searches, not after the
	// last one.
	TopicJitter harvest.JitterRange
}

// Engine executes harvest runs. A run discovers URLs once per store lifetime,
// then works through the pending set and persists every outcome before the
// next one is attempted. Engines are safe to reuse for consecutive runs but
// must not execute two runs at the same time.
type Engine struct {
	store     harvest.URLStore
	searcher  harvest.Searcher
	processor harvest.Processor
	dataset   harvest.DatasetWriter
	pauser    harvest.Pauser
	clock     harvest.Clock
	ids       harvest.IDGenerator
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger

	mu    sync.Mutex
	phase harvest.RunPhase
}

// New constructs an Engine. The emitter may be nil, in which case no progress
// events are published.
func New(
	store harvest.URLStore,
	searcher harvest.Searcher,
	processor harvest.Processor,
	dataset harvest.DatasetWriter,
	pauser harvest.Pauser,
	clock harvest.Clock,
	ids harvest.IDGenerator,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if pauser == nil {
		pauser = harvest.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		searcher:  searcher,
		processor: processor,
		dataset:   dataset,
		pauser:    pauser,
		clock:     clock,
		ids:       ids,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
		phase:     harvest.PhaseInit,
	}
}

// Phase reports the lifecycle phase of the current or most recent run.
func (e *Engine) Phase() harvest.RunPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) setPhase(phase harvest.RunPhase) {
	e.mu.Lock()
	e.phase = phase
	e.mu.Unlock()
}

// Run executes one harvest run over the given topics. Fetch failures are
// recorded and do not fail the run; store and dataset write failures do. The
// returned summary is meaningful even when the error is non-nil: it reflects
// whatever the run persisted before stopping.
func (e *Engine) Run(ctx context.Context, topics []string) (harvest.RunSummary, error) {
	if len(topics) == 0 {
		return harvest.RunSummary{}, errors.New("no topics to harvest")
	}

	runID, err := e.ids.NewID()
	if err != nil {
		return harvest.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	uid, err := uuid.Parse(runID)
	if err != nil {
		return harvest.RunSummary{}, fmt.Errorf("parse run id %q: %w", runID, err)
	}
	binID := progress.UUIDToBytes(uid)
	ctx = harvest.WithRunID(ctx, binID)

	started := e.clock.Now()
	summary := harvest.RunSummary{
		RunID:     runID,
		Topics:    len(topics),
		Requested: e.cfg.TotalURLs,
	}

	e.setPhase(harvest.PhaseInit)
	e.logger.Info("run starting",
		zap.String("run_id", runID),
		zap.Int("topics", len(topics)),
		zap.Int("requested_urls", e.cfg.TotalURLs),
	)
	e.emit(progress.Event{
		RunID: binID,
		TS:    started.UTC(),
		Stage: progress.StageRunStart,
		Tally: progress.Tally{Topics: int64(len(topics)), Requested: int64(e.cfg.TotalURLs)},
	})

	if err := e.store.Load(ctx); err != nil {
		return summary, e.abort(binID, started, summary, fmt.Errorf("load url store: %w", err))
	}
	counts, err := e.store.Counts(ctx)
	if err != nil {
		return summary, e.abort(binID, started, summary, fmt.Errorf("count urls: %w", err))
	}

	if counts.Discovered == 0 {
		e.setPhase(harvest.PhaseDiscovering)
		e.emit(progress.Event{
			RunID: binID,
			TS:    e.clock.Now().UTC(),
			Stage: progress.StageDiscoveryStart,
			Tally: progress.Tally{Topics: int64(len(topics)), Requested: int64(e.cfg.TotalURLs)},
		})
		added, err := e.discover(ctx, binID, topics)
		summary.Added = added
		if err != nil {
			return summary, e.abort(binID, started, summary, err)
		}
		e.emit(progress.Event{
			RunID: binID,
			TS:    e.clock.Now().UTC(),
			Stage: progress.StageDiscoveryDone,
			Tally: progress.Tally{Topics: int64(len(topics)), Discovered: int64(added)},
		})
	} else {
		e.logger.Info("resuming with existing discoveries",
			zap.Int("discovered", counts.Discovered),
			zap.Int("pending", counts.Pending),
		)
	}

	e.setPhase(harvest.PhaseProcessing)
	pending, err := e.store.Pending(ctx)
	if err != nil {
		return summary, e.abort(binID, started, summary, fmt.Errorf("list pending urls: %w", err))
	}
	e.logger.Info("processing pending urls", zap.Int("pending", len(pending)))

	stats, err := e.processPending(ctx, pending)
	summary.Processed = stats.processed
	summary.Completed = stats.completed
	summary.Failed = stats.failed
	summary.Appended = stats.appended
	if err != nil {
		return summary, e.abort(binID, started, summary, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && stats.processed < len(pending) {
		return summary, e.abort(binID, started, summary, fmt.Errorf("run interrupted: %w", ctxErr))
	}

	finalCounts, err := e.store.Counts(context.WithoutCancel(ctx))
	if err != nil {
		return summary, e.abort(binID, started, summary, fmt.Errorf("count urls: %w", err))
	}
	summary.Discovered = finalCounts.Discovered

	e.setPhase(harvest.PhaseDone)
	elapsed := e.clock.Now().Sub(started)
	e.emit(progress.Event{
		RunID: binID,
		TS:    e.clock.Now().UTC(),
		Stage: progress.StageRunDone,
		Dur:   elapsed,
		Tally: runTally(summary),
	})
	e.logger.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("processed", summary.Processed),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("appended", summary.Appended),
		zap.Duration("elapsed", elapsed),
	)
	return summary, nil
}

// discover searches every topic and merges the results into the store. Search
// failures skip the topic; store failures stop the run.
func (e *Engine) discover(ctx context.Context, runID [16]byte, topics []string) (int, error) {
	perTopic := e.cfg.TotalURLs / len(topics)
	total := 0
	for i, topic := range topics {
		added, err := e.discoverTopic(ctx, runID, topic, perTopic)
		if err != nil {
			return total, err
		}
		total += added
		if i < len(topics)-1 {
			e.pauser.Pause(ctx, e.cfg.TopicJitter.Duration())
		}
	}
	return total, nil
}

func (e *Engine) discoverTopic(ctx context.Context, runID [16]byte, topic string, limit int) (int, error) {
	urls, err := e.searcher.Search(ctx, topic, limit)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("search topic %q: %w", topic, err)
		}
		e.logger.Warn("topic search failed", zap.String("topic", topic), zap.Error(err))
		e.emit(progress.Event{
			RunID: runID,
			TS:    e.clock.Now().UTC(),
			Stage: progress.StageTopicDone,
			Topic: topic,
			Note:  err.Error(),
		})
		return 0, nil
	}

	added, err := e.store.AddDiscovered(ctx, topic, urls)
	if err != nil {
		return 0, fmt.Errorf("record discoveries for topic %q: %w", topic, err)
	}
	e.logger.Info("topic searched",
		zap.String("topic", topic),
		zap.Int("results", len(urls)),
		zap.Int("added", added),
	)
	e.emit(progress.Event{
		RunID: runID,
		TS:    e.clock.Now().UTC(),
		Stage: progress.StageTopicDone,
		Topic: topic,
		Tally: progress.Tally{Discovered: int64(added)},
	})
	return added, nil
}

type procStats struct {
	processed int
	completed int
	failed    int
	appended  int
}

// processPending streams outcomes from the processor and persists each one
// before taking the next. Persistence uses a context that survives run
// cancellation so in-flight outcomes are never lost to shutdown.
func (e *Engine) processPending(ctx context.Context, pending []harvest.Target) (procStats, error) {
	var stats procStats
	if len(pending) == 0 {
		return stats, nil
	}

	procCtx, stop := context.WithCancel(ctx)
	defer stop()
	persistCtx := context.WithoutCancel(ctx)

	outcomes := e.processor.Process(procCtx, pending)
	for outcome := range outcomes {
		if err := e.recordOutcome(persistCtx, outcome, &stats); err != nil {
			stop()
			for range outcomes {
			}
			return stats, err
		}
	}
	return stats, nil
}

func (e *Engine) recordOutcome(ctx context.Context, outcome harvest.Outcome, stats *procStats) error {
	stats.processed++
	if outcome.Failed {
		if err := e.store.MarkFailed(ctx, outcome.Target.URL, outcome.Reason); err != nil {
			return fmt.Errorf("mark url failed: %w", err)
		}
		stats.failed++
		e.logger.Warn("page failed",
			zap.String("url", outcome.Target.URL),
			zap.String("reason", outcome.Reason),
		)
		return nil
	}

	if err := e.store.MarkCompleted(ctx, outcome.Result); err != nil {
		return fmt.Errorf("mark url completed: %w", err)
	}
	stats.completed++
	if err := e.dataset.Append(outcome.Result); err != nil {
		return fmt.Errorf("append dataset record: %w", err)
	}
	stats.appended++
	e.logger.Info("page harvested",
		zap.String("url", outcome.Target.URL),
		zap.String("title", outcome.Result.Title),
		zap.Int64("bytes", outcome.Bytes),
	)
	return nil
}

func (e *Engine) abort(runID [16]byte, started time.Time, summary harvest.RunSummary, err error) error {
	e.logger.Error("run failed", zap.String("run_id", summary.RunID), zap.Error(err))
	e.emit(progress.Event{
		RunID: runID,
		TS:    e.clock.Now().UTC(),
		Stage: progress.StageRunError,
		Dur:   e.clock.Now().Sub(started),
		Note:  err.Error(),
		Tally: runTally(summary),
	})
	return err
}

func (e *Engine) emit(evt progress.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// runTally converts a run summary into the event counter form. Discovered
// carries the URLs this run added, not the store's lifetime total.
func runTally(s harvest.RunSummary) progress.Tally {
	return progress.Tally{
		Topics:     int64(s.Topics),
		Requested:  int64(s.Requested),
		Discovered: int64(s.Added),
		Completed:  int64(s.Completed),
		Failed:     int64(s.Failed),
		Appended:   int64(s.Appended),
	}
}

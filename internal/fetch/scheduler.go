package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/progress"
)

// SchedulerConfig controls how pending targets are worked through.
type SchedulerConfig struct {
	// Workers is the number of concurrent fetch workers. Zero or negative
	// means one, which keeps outcomes in strict pending order.
	Workers int
	// Jitter is slept by a worker between consecutive targets it takes. A
	// worker's first target is fetched immediately.
	Jitter harvest.JitterRange
}

// Scheduler feeds pending targets through a pool of fetch workers and streams
// one Outcome per target back to the caller. Failures are data, not errors:
// a target that cannot be fetched or parsed still produces an Outcome.
type Scheduler struct {
	fetcher   harvest.Fetcher
	extractor harvest.Extractor
	headers   http.Header
	pauser    harvest.Pauser
	emitter   progress.Emitter
	logger    *zap.Logger
	cfg       SchedulerConfig
}

var _ harvest.Processor = (*Scheduler)(nil)

// NewScheduler builds a Scheduler. The emitter may be nil, in which case no
// fetch progress events are published.
func NewScheduler(
	fetcher harvest.Fetcher,
	extractor harvest.Extractor,
	headers http.Header,
	pauser harvest.Pauser,
	emitter progress.Emitter,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if pauser == nil {
		pauser = harvest.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fetcher:   fetcher,
		extractor: extractor,
		headers:   headers,
		pauser:    pauser,
		emitter:   emitter,
		logger:    logger,
		cfg:       cfg,
	}
}

// Process streams targets to the worker pool in slice order. The returned
// channel is unbuffered, so a slow consumer applies backpressure all the way
// to the fetchers. It is closed once every target has an outcome or ctx is
// canceled.
func (s *Scheduler) Process(ctx context.Context, targets []harvest.Target) <-chan harvest.Outcome {
	outcomes := make(chan harvest.Outcome)
	feed := make(chan harvest.Target)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.runWorker(ctx, id, feed, outcomes)
		}(i)
	}

	go func() {
		defer close(feed)
		for _, target := range targets {
			select {
			case feed <- target:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

func (s *Scheduler) runWorker(ctx context.Context, id int, feed <-chan harvest.Target, outcomes chan<- harvest.Outcome) {
	logger := s.logger.With(zap.Int("worker", id))
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case target, ok := <-feed:
			if !ok {
				return
			}
			// Jitter between consecutive targets, never after the last one.
			if !first {
				s.pauser.Pause(ctx, s.cfg.Jitter.Duration())
				if ctx.Err() != nil {
					return
				}
			}
			first = false
			s.emitFetchStart(ctx, target)
			outcome, ok := s.attempt(ctx, target)
			if !ok {
				return
			}
			s.emitFetchDone(ctx, outcome)
			logger.Debug("target processed",
				zap.String("url", outcome.Target.URL),
				zap.String("topic", outcome.Target.Topic),
				zap.Bool("failed", outcome.Failed),
				zap.Int("status", outcome.Status),
				zap.Duration("duration", outcome.Duration),
			)
			select {
			case outcomes <- outcome:
			case <-ctx.Done():
				return
			}
		}
	}
}

// attempt fetches and extracts one target. The second return is false when
// the run context ended mid-attempt; such targets stay pending.
func (s *Scheduler) attempt(ctx context.Context, target harvest.Target) (harvest.Outcome, bool) {
	start := time.Now()
	resp, err := s.fetcher.Fetch(ctx, harvest.FetchRequest{URL: target.URL, Headers: s.headers})
	if err != nil {
		if ctx.Err() != nil {
			return harvest.Outcome{}, false
		}
		return harvest.Outcome{
			Target:   target,
			Failed:   true,
			Reason:   failureReason(err),
			Duration: time.Since(start),
		}, true
	}

	outcome := harvest.Outcome{
		Target:   target,
		Status:   resp.StatusCode,
		Bytes:    int64(len(resp.Body)),
		Duration: resp.Duration,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome.Failed = true
		outcome.Reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return outcome, true
	}

	result, err := s.extractor.Extract(target.URL, resp.Body)
	if err != nil {
		outcome.Failed = true
		outcome.Reason = failureReason(err)
		return outcome, true
	}
	outcome.Result = result
	return outcome, true
}

// failureReason flattens an error into the reason string recorded for the
// URL. Reasons are never empty.
func failureReason(err error) string {
	if reason := strings.TrimSpace(err.Error()); reason != "" {
		return reason
	}
	return "fetch failed"
}

func (s *Scheduler) emitFetchStart(ctx context.Context, target harvest.Target) {
	if s.emitter == nil {
		return
	}
	runID, ok := harvest.RunIDFrom(ctx)
	if !ok {
		return
	}
	s.emitter.Emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageFetchStart,
		Topic: target.Topic,
		Site:  progress.SiteLabel(target.URL),
		URL:   target.URL,
	})
}

func (s *Scheduler) emitFetchDone(ctx context.Context, outcome harvest.Outcome) {
	if s.emitter == nil {
		return
	}
	runID, ok := harvest.RunIDFrom(ctx)
	if !ok {
		return
	}
	s.emitter.Emit(progress.Event{
		RunID:       runID,
		TS:          time.Now().UTC(),
		Stage:       progress.StageFetchDone,
		Topic:       outcome.Target.Topic,
		Site:        progress.SiteLabel(outcome.Target.URL),
		URL:         outcome.Target.URL,
		Bytes:       outcome.Bytes,
		StatusClass: progress.ClassifyStatus(outcome.Status),
		Dur:         outcome.Duration,
		Note:        outcome.Reason,
	})
}

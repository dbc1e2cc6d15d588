// Package app assembles the harvester's components from configuration and
// owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harvestlab/topic-harvester/internal/clock/system"
	"github.com/harvestlab/topic-harvester/internal/config"
	"github.com/harvestlab/topic-harvester/internal/dataset"
	"github.com/harvestlab/topic-harvester/internal/discovery"
	"github.com/harvestlab/topic-harvester/internal/engine"
	"github.com/harvestlab/topic-harvester/internal/fetch"
	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/history"
	"github.com/harvestlab/topic-harvester/internal/history/sqlite"
	"github.com/harvestlab/topic-harvester/internal/id/uuid"
	"github.com/harvestlab/topic-harvester/internal/logging"
	"github.com/harvestlab/topic-harvester/internal/monitor"
	"github.com/harvestlab/topic-harvester/internal/progress"
	progresssinks "github.com/harvestlab/topic-harvester/internal/progress/sinks"
	urlfile "github.com/harvestlab/topic-harvester/internal/urlstore/file"
)

// App holds the assembled harvester services.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *urlfile.Store
	dataset     *dataset.Writer
	searcher    harvest.Searcher
	scheduler   harvest.Processor
	historyRepo history.Repository
	registry    *prometheus.Registry
	progressHub *progress.Hub
	monitor     *monitor.Server
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the persistent URL store.
func (a *App) Store() harvest.URLStore { return a.store }

// History returns the run history repository.
func (a *App) History() history.Repository { return a.historyRepo }

// DatasetPath returns the dataset output file location.
func (a *App) DatasetPath() string { return a.dataset.Path() }

// Build wires every component from the configuration. It fails fast: any
// component that cannot initialize aborts the build.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("state_dir", cfg.Storage.Dir),
		zap.Int("concurrency", cfg.Crawl.Concurrency),
	)

	app.store, err = urlfile.New(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("url store init failed: %w", err)
	}

	app.dataset, err = dataset.New(resolvePath(cfg.Storage.Dir, cfg.Storage.DatasetDir))
	if err != nil {
		return nil, fmt.Errorf("dataset writer init failed: %w", err)
	}

	if err := setupHistory(app); err != nil {
		return nil, err
	}

	emitter, err := setupProgress(ctx, app)
	if err != nil {
		return nil, err
	}

	app.searcher = discovery.NewWebProvider(discovery.Config{
		URLTemplate:    cfg.Search.URLTemplate,
		ResultSelector: cfg.Search.ResultSelector,
		QueryDelay:     cfg.Search.ResultDelay,
		Timeout:        cfg.Search.Timeout,
		UserAgent:      cfg.HTTP.UserAgent,
		BlockedHosts:   cfg.Search.BlockedDomains,
	}, nil, logger.Named("discovery"))

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	})
	app.scheduler = fetch.NewScheduler(
		fetcher,
		fetch.NewTextExtractor(),
		harvest.BrowserHeaders(cfg.HTTP.UserAgent),
		nil,
		emitter,
		logger.Named("fetch"),
		fetch.SchedulerConfig{
			Workers: cfg.Crawl.Concurrency,
			Jitter:  cfg.URLJitter(),
		},
	)

	if cfg.Monitor.Addr != "" {
		app.monitor = monitor.New(app.historyRepo, app.registry, monitor.Config{
			Addr:   cfg.Monitor.Addr,
			APIKey: cfg.Monitor.APIKey,
		}, logger.Named("monitor"))
		logger.Info("monitor enabled", zap.String("addr", cfg.Monitor.Addr))
	}

	return app, nil
}

// Harvest runs one harvest over the topics, aiming for totalURLs discoveries
// across all of them. The monitor server, when configured, serves for the
// duration of the run. SIGINT and SIGTERM interrupt the run; persisted state
// survives for the next invocation.
func (a *App) Harvest(ctx context.Context, topics []string, totalURLs int) (harvest.RunSummary, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(
		a.store,
		a.searcher,
		a.scheduler,
		a.dataset,
		nil,
		system.New(),
		uuid.New(),
		a.progressHub,
		engine.Config{
			TotalURLs:   totalURLs,
			TopicJitter: a.cfg.TopicJitter(),
		},
		a.logger.Named("engine"),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var summary harvest.RunSummary
	g, gctx := errgroup.WithContext(runCtx)
	if a.monitor != nil {
		g.Go(func() error {
			return a.monitor.Serve(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		var err error
		summary, err = eng.Run(gctx, topics)
		return err
	})

	err := g.Wait()
	return summary, err
}

// Close flushes progress events and releases resources. The hub closes first
// so buffered run events still reach the history database before it shuts.
func (a *App) Close(ctx context.Context) error {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.historyRepo != nil {
		if err := a.historyRepo.Close(); err != nil {
			a.logger.Warn("history close failed", zap.Error(err))
		}
	}
	// Sync can legitimately fail on stderr; nothing to do about it.
	_ = a.logger.Sync()
	return nil
}

func setupHistory(app *App) error {
	if !app.cfg.History.Enabled {
		app.historyRepo = history.NopRepository{}
		app.logger.Info("run history disabled")
		return nil
	}
	path := resolvePath(app.cfg.Storage.Dir, app.cfg.History.Path)
	repo, err := sqlite.Open(path)
	if err != nil {
		return fmt.Errorf("history db init failed: %w", err)
	}
	app.historyRepo = repo
	app.logger.Info("run history initialized", zap.String("path", path))
	return nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	app.registry = prometheus.NewRegistry()

	promSink, err := progresssinks.NewPrometheusSink(app.registry)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{promSink}
	if app.cfg.History.Enabled {
		sinkList = append(sinkList, progresssinks.NewHistorySink(app.historyRepo, app.logger.Named("progress_history")))
	}
	if app.cfg.Logging.Development {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
	}

	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.BatchMaxEvents,
		MaxBatchWait:   app.cfg.Progress.BatchMaxWait,
		SinkTimeout:    app.cfg.Progress.SinkTimeout,
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Debug("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Int("sinks", len(sinkList)),
	)
	return app.progressHub, nil
}

// resolvePath joins a relative path onto the state directory; absolute paths
// pass through.
func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

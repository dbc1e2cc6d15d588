package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvestlab/topic-harvester/internal/app"
	"github.com/harvestlab/topic-harvester/internal/config"
	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/history"
)

var cfgFile string

// App is the application surface commands depend on. Using an interface here
// lets tests inject a fake application through the same factory.
type App interface {
	Logger() *zap.Logger
	Store() harvest.URLStore
	History() history.Repository
	DatasetPath() string
	Harvest(ctx context.Context, topics []string, totalURLs int) (harvest.RunSummary, error)
	Close(ctx context.Context) error
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "A topic-driven web page harvester.",
		Long: `harvester discovers web pages for a set of topics, fetches and extracts
their text, and appends the results to a resumable dataset. Every outcome is
persisted before the next URL is attempted, so an interrupted run picks up
exactly where it stopped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); defaults and HARVESTER_* env vars apply without one")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// resolveApp builds the application for one command invocation. The caller
// owns the returned instance and must close it when the command finishes.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, err := newApp(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}
	return appInstance, nil
}

// closeApp flushes and releases application resources. The command context
// may already be canceled on interrupt, so Close runs under its own deadline.
func closeApp(appInstance App) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := appInstance.Close(ctx); err != nil {
		appInstance.Logger().Warn("application close failed", zap.Error(err))
	}
}

// Execute is the main entry point.
func Execute() {
	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

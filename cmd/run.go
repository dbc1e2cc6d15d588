// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/topics"
)

// newRunCmd creates and configures the 'run' subcommand.
func newRunCmd() *cobra.Command {
	var (
		websites  int
		topicsArg string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one harvest over the given topics",
		Long: `Run discovers candidate pages for each topic via the configured search
frontend, fetches and extracts every pending page, and appends the results to
the dataset. Discovery happens once per dataset: a rerun with existing state
skips straight to the pending URLs.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, websites, topicsArg)
		},
	}
	cmd.Flags().IntVar(&websites, "websites", 0, "total URLs to discover, split evenly across topics")
	cmd.Flags().StringVar(&topicsArg, "topics", "", "comma-separated topics or a topics file (.json, .yaml, .txt, .md)")
	_ = cmd.MarkFlagRequired("websites")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func runHarvest(cmd *cobra.Command, websites int, topicsArg string) error {
	if websites < 1 {
		return errors.New("--websites must be at least 1")
	}
	topicList, err := topics.Load(topicsArg)
	if err != nil {
		return fmt.Errorf("resolve topics: %w", err)
	}

	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(appInstance)

	summary, err := appInstance.Harvest(cmd.Context(), topicList, websites)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		appInstance.Logger().Warn("run interrupted; persisted state resumes on the next run")
	default:
		return fmt.Errorf("harvest: %w", err)
	}

	printSummary(cmd.OutOrStdout(), summary, appInstance.DatasetPath())
	return nil
}

func printSummary(out io.Writer, s harvest.RunSummary, datasetPath string) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s", s.RunID)
	t.AppendRows([]table.Row{
		{"Topics", s.Topics},
		{"Requested", s.Requested},
		{"Newly discovered", s.Added},
		{"Total discovered", s.Discovered},
		{"Processed", s.Processed},
		{"Completed", s.Completed},
		{"Failed", s.Failed},
		{"Records appended", s.Appended},
	})
	t.Render()
	fmt.Fprintf(out, "dataset: %s\n", datasetPath)
}

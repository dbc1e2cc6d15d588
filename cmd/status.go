package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' subcommand. It reads the persisted stores
// and run history without touching the network.
func newStatusCmd() *cobra.Command {
	var runsLimit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Shows URL store counts and recent run history",

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, runsLimit)
		},
	}
	cmd.Flags().IntVar(&runsLimit, "runs", 10, "number of recent runs to show")
	return cmd
}

func runStatus(cmd *cobra.Command, runsLimit int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(appInstance)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store := appInstance.Store()
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load url store: %w", err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count urls: %w", err)
	}

	ct := table.NewWriter()
	ct.SetOutputMirror(out)
	ct.SetStyle(table.StyleLight)
	ct.SetTitle("URL store")
	ct.AppendRows([]table.Row{
		{"Discovered", counts.Discovered},
		{"Completed", counts.Completed},
		{"Failed", counts.Failed},
		{"Pending", counts.Pending},
	})
	ct.Render()

	recs, err := appInstance.History().Recent(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("list run history: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "no recorded runs")
		return nil
	}

	ht := table.NewWriter()
	ht.SetOutputMirror(out)
	ht.SetStyle(table.StyleLight)
	ht.SetTitle("Recent runs")
	ht.AppendHeader(table.Row{"Run", "Started", "Status", "Completed", "Failed", "Appended", "Note"})
	for _, rec := range recs {
		ht.AppendRow(table.Row{
			shortRunID(rec.ID),
			rec.StartedAt.Format(time.RFC3339),
			rec.Status,
			rec.Completed,
			rec.Failed,
			rec.Appended,
			rec.Note,
		})
	}
	ht.Render()
	return nil
}

// shortRunID trims a UUID to its first block for table display.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

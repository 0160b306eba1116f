package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newBackfillCmd builds the 'backfill' subcommand: a bounded walk of the
// historical listing pages, newest first.
func newBackfillCmd() *cobra.Command {
	var start, end int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Ingest a range of historical listing pages",
		Long: `Walks listing pages from end-1 down to start, draining the backfill queue
after each page. Already-ingested audiobooks are skipped without a fetch,
so re-running a range is cheap.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if start < 1 || end <= start {
				return fmt.Errorf("require 1 <= start < end, got start=%d end=%d", start, end)
			}

			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			w, err := a.BackfillWorker()
			if err != nil {
				return fmt.Errorf("build backfill worker: %w", err)
			}

			if err := w.RunBackfill(cmd.Context(), start, end); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run backfill: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&start, "start", 1, "lowest listing page to ingest (inclusive)")
	cmd.Flags().IntVar(&end, "end", 0, "listing page to stop before (exclusive)")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newCrawlCmd builds the 'crawl' subcommand: the live ingestion loop that
// periodically re-reads the first listing page and ingests new submissions.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run the live ingestion loop",
		Long: `Seeds the live queue with the first listing page, drains it, then sleeps
and repeats. New audiobooks found on the listing are fetched, extracted,
embedded and persisted, and an ingestion event is emitted for each.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	w, err := a.LiveWorker()
	if err != nil {
		return fmt.Errorf("build crawl worker: %w", err)
	}

	if err := w.RunLive(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run live crawl: %w", err)
	}
	return nil
}

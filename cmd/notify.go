package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

// newNotifyCmd builds the 'notify' subcommand: the fan-out loop that turns
// ingestion events into per-user notifications.
func newNotifyCmd() *cobra.Command {
	var testRecordID int64

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run the notification fan-out worker",
		Long: `Consumes ingestion events and writes a notification row for every user
subscribed to the audiobook's series, authors, readers, categories or
keywords. With --test-record-id an event for that audiobook is enqueued
first, which is useful for exercising the pipeline by hand.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if testRecordID > 0 {
				event := catalog.IngestedEvent{AudiobookID: testRecordID}
				if err := a.Queue().Send(cmd.Context(), a.NotificationsQueue(), event); err != nil {
					return fmt.Errorf("enqueue test event: %w", err)
				}
				a.Logger().Info("test event enqueued")
			}

			if err := a.NotifyWorker().Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run notification worker: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&testRecordID, "test-record-id", 0, "enqueue an event for this audiobook id before starting")

	return cmd
}

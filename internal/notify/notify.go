// Package notify fans ingestion events out to subscribed users. For every
// ingested audiobook it walks the series, author, reader, category and
// keyword subscriptions and upserts one notification per interested user.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

// relationPasses are the join-table passes run for every event, after the
// series pass.
var relationPasses = []catalog.RelationType{
	catalog.RelationAuthor,
	catalog.RelationReader,
	catalog.RelationCategory,
	catalog.RelationKeyword,
}

// Config carries the fan-out loop parameters.
type Config struct {
	QueueName    string
	PollInterval time.Duration
}

// Worker consumes ingestion events and writes user notifications.
type Worker struct {
	cfg    Config
	store  catalog.NotificationStore
	queue  catalog.Queue
	logger *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Worker.
func New(cfg Config, store catalog.NotificationStore, queue catalog.Queue, logger *zap.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		store:  store,
		queue:  queue,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Run loops forever, popping events and fanning them out. Any store or
// queue error stops the loop so the supervisor can restart it; the popped
// event is already gone from the queue and is not retried.
func (w *Worker) Run(ctx context.Context) error {
	for {
		var event catalog.IngestedEvent
		ok, err := w.queue.Pop(ctx, w.cfg.QueueName, &event)
		if err != nil {
			return fmt.Errorf("pop ingestion event: %w", err)
		}
		if !ok {
			w.logger.Debug("no event in queue, waiting")
			if err := w.sleep(ctx, w.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}
		w.logger.Debug("ingestion event received", zap.Int64("audiobook_id", event.AudiobookID))
		if err := w.FanOut(ctx, event.AudiobookID); err != nil {
			return err
		}
	}
}

// FanOut runs every subscription pass for one audiobook.
func (w *Worker) FanOut(ctx context.Context, audiobookID int64) error {
	if err := w.seriesPass(ctx, audiobookID); err != nil {
		return err
	}
	for _, rel := range relationPasses {
		w.logger.Info("pushing notifications",
			zap.Int64("audiobook_id", audiobookID),
			zap.String("relation", string(rel)))
		if err := w.relationPass(ctx, rel, audiobookID); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) seriesPass(ctx context.Context, audiobookID int64) error {
	seriesID, err := w.store.SeriesID(ctx, audiobookID)
	if err != nil {
		return fmt.Errorf("series pass: %w", err)
	}
	if seriesID == nil {
		w.logger.Debug("audiobook has no series", zap.Int64("audiobook_id", audiobookID))
		return nil
	}
	users, err := w.store.SubscriberIDs(ctx, catalog.RelationSeries, *seriesID)
	if err != nil {
		return fmt.Errorf("series subscribers: %w", err)
	}
	if err := w.store.UpsertNotifications(ctx, users, audiobookID, catalog.ReasonMatchSeries); err != nil {
		return fmt.Errorf("series notifications: %w", err)
	}
	return nil
}

func (w *Worker) relationPass(ctx context.Context, rel catalog.RelationType, audiobookID int64) error {
	entityIDs, err := w.store.RelatedEntityIDs(ctx, rel, audiobookID)
	if err != nil {
		return fmt.Errorf("%s entities: %w", rel, err)
	}
	for _, entityID := range entityIDs {
		users, err := w.store.SubscriberIDs(ctx, rel, entityID)
		if err != nil {
			return fmt.Errorf("%s subscribers: %w", rel, err)
		}
		if err := w.store.UpsertNotifications(ctx, users, audiobookID, catalog.ReasonFor(rel)); err != nil {
			return fmt.Errorf("%s notifications: %w", rel, err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

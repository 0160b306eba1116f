// Package worker runs the crawl dispatch loops: it drains the task queues,
// routes tasks to the listing and audiobook handlers, and paces every
// network fetch with a politeness sleep.
package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/metrics"
)

// Extractor is the content extraction surface the dispatch loop needs.
type Extractor interface {
	Extract(ctx context.Context, page catalog.Page) (catalog.ExtractedFields, error)
	ExtractListing(ctx context.Context, page catalog.Page, baseURL string) (catalog.Listing, error)
	Summarize(ctx context.Context, description string) (string, error)
	Embeddable(ctx context.Context, description string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config carries the crawl loop parameters.
type Config struct {
	DomainKeyword      string
	MirrorExtensions   []string
	ListingPath        string
	QueueName          string
	NotificationsQueue string
	ArchivePrefix      string
	ArchiveContentType string
	FetchInterval      time.Duration
	IdleInterval       time.Duration
}

// Worker consumes crawl tasks and turns audiobook pages into catalog rows.
type Worker struct {
	cfg       Config
	fetcher   catalog.Fetcher
	extractor Extractor
	store     catalog.IngestStore
	queue     catalog.Queue
	resolver  catalog.MetadataResolver
	archive   catalog.Archive
	hasher    catalog.Hasher
	logger    *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Worker.
func New(cfg Config, fetcher catalog.Fetcher, extractor Extractor, store catalog.IngestStore,
	queue catalog.Queue, resolver catalog.MetadataResolver, archive catalog.Archive,
	hasher catalog.Hasher, logger *zap.Logger,
) (*Worker, error) {
	if cfg.DomainKeyword == "" || len(cfg.MirrorExtensions) == 0 {
		return nil, fmt.Errorf("domain keyword and at least one mirror extension are required")
	}
	if cfg.QueueName == "" || cfg.NotificationsQueue == "" {
		return nil, fmt.Errorf("queue names are required")
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "pages"
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/html"
	}
	return &Worker{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		queue:     queue,
		resolver:  resolver,
		archive:   archive,
		hasher:    hasher,
		logger:    logger,
		sleep:     sleepCtx,
	}, nil
}

func (w *Worker) baseURL() string {
	return fmt.Sprintf("https://%s.%s/", w.cfg.DomainKeyword, w.cfg.MirrorExtensions[0])
}

func (w *Worker) listingURL(page int) (string, error) {
	base, err := url.Parse(w.baseURL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(fmt.Sprintf(w.cfg.ListingPath, page))
	if err != nil {
		return "", fmt.Errorf("parse listing path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// RunLive polls the first listing page forever: it seeds the listing task,
// drains the queue, then idles before the next cycle.
func (w *Worker) RunLive(ctx context.Context) error {
	target, err := w.listingURL(1)
	if err != nil {
		return err
	}
	for {
		if err := w.queue.Send(ctx, w.cfg.QueueName, catalog.NewListingTask(target)); err != nil {
			return fmt.Errorf("seed listing task: %w", err)
		}
		if err := w.drain(ctx); err != nil {
			return err
		}
		w.logger.Info("queue empty, idling",
			zap.Duration("idle_interval", w.cfg.IdleInterval))
		if err := w.sleep(ctx, w.cfg.IdleInterval); err != nil {
			return err
		}
	}
}

// RunBackfill walks listing pages from end-1 down to start, draining the
// queue after each page so a page's audiobooks are ingested before the next
// page is seeded.
func (w *Worker) RunBackfill(ctx context.Context, start, end int) error {
	for page := end - 1; page >= start; page-- {
		target, err := w.listingURL(page)
		if err != nil {
			return err
		}
		w.logger.Debug("seeding backfill page", zap.Int("page", page), zap.String("url", target))
		if err := w.queue.Send(ctx, w.cfg.QueueName, catalog.NewListingTask(target)); err != nil {
			return fmt.Errorf("seed backfill task: %w", err)
		}
		if err := w.drain(ctx); err != nil {
			return err
		}
	}
	return nil
}

// drain pops tasks until the queue is empty. Audiobook task failures are
// logged and skipped; listing failures abort the drain so the cycle can
// restart cleanly.
func (w *Worker) drain(ctx context.Context) error {
	for {
		var task catalog.Task
		ok, err := w.queue.Pop(ctx, w.cfg.QueueName, &task)
		if err != nil {
			return fmt.Errorf("pop task: %w", err)
		}
		if !ok {
			return nil
		}

		madeRequest := true
		switch task.Kind {
		case catalog.TaskParseListing:
			w.logger.Info("parsing listing page", zap.String("url", task.URL))
			if err := w.handleListing(ctx, task.URL); err != nil {
				metrics.ObserveTask(string(task.Kind), "error")
				return err
			}
			metrics.ObserveTask(string(task.Kind), "ok")
		case catalog.TaskParseAudiobook:
			if !strings.Contains(strings.ToLower(task.URL), w.cfg.DomainKeyword) {
				w.logger.Error("task url outside target domain",
					zap.String("url", task.URL),
					zap.String("domain", w.cfg.DomainKeyword))
				metrics.ObserveTask(string(task.Kind), "rejected")
				continue
			}
			w.logger.Info("parsing audiobook page", zap.String("url", task.URL))
			made, err := w.handleAudiobook(ctx, task)
			madeRequest = made
			if err != nil {
				w.logger.Error("audiobook task failed", zap.String("url", task.URL), zap.Error(err))
				metrics.ObserveTask(string(task.Kind), "error")
			} else {
				metrics.ObserveTask(string(task.Kind), "ok")
			}
		default:
			w.logger.Error("unknown task kind", zap.String("kind", string(task.Kind)))
			metrics.ObserveTask(string(task.Kind), "unknown")
			continue
		}

		if madeRequest {
			if err := w.sleep(ctx, w.cfg.FetchInterval); err != nil {
				return err
			}
		}
	}
}

// handleListing fetches a listing page, extracts its submissions and
// enqueues an audiobook task for each one not yet ingested. Submissions are
// processed oldest first so ingestion order follows submission order.
func (w *Worker) handleListing(ctx context.Context, rawURL string) error {
	page, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("fetch listing page: %w", err)
	}

	listing, err := w.extractor.ExtractListing(ctx, page, w.baseURL())
	if err != nil {
		return fmt.Errorf("extract listing: %w", err)
	}

	base, err := url.Parse(w.baseURL())
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}

	subs := listing.Submissions
	for i := len(subs) - 1; i >= 0; i-- {
		sub := subs[i]
		ref, err := url.Parse(sub.URL)
		if err != nil {
			w.logger.Error("bad submission url", zap.String("url", sub.URL), zap.Error(err))
			continue
		}
		target := base.ResolveReference(ref).String()

		exists, err := w.store.AudiobookExists(ctx, target)
		if err != nil {
			return fmt.Errorf("check audiobook exists: %w", err)
		}
		if exists {
			w.logger.Info("skipping known audiobook", zap.String("url", target))
			continue
		}
		w.logger.Info("enqueueing audiobook page", zap.String("url", target))
		if err := w.queue.Send(ctx, w.cfg.QueueName, catalog.NewAudiobookTask(target, sub.SubmissionDate)); err != nil {
			return fmt.Errorf("enqueue audiobook task: %w", err)
		}
	}
	return nil
}

// handleAudiobook ingests one audiobook page end to end. The returned bool
// reports whether a network fetch happened, which decides the politeness
// sleep.
func (w *Worker) handleAudiobook(ctx context.Context, task catalog.Task) (bool, error) {
	exists, err := w.store.AudiobookExists(ctx, task.URL)
	if err != nil {
		return false, fmt.Errorf("check audiobook exists: %w", err)
	}
	if exists {
		w.logger.Info("audiobook already ingested, skipping", zap.String("url", task.URL))
		return false, nil
	}

	page, err := w.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return true, fmt.Errorf("fetch audiobook page: %w", err)
	}

	w.archivePage(ctx, page)

	fields, err := w.extractor.Extract(ctx, page)
	if err != nil {
		return true, fmt.Errorf("extract audiobook fields: %w", err)
	}

	short, err := w.extractor.Summarize(ctx, fields.Description)
	if err != nil {
		return true, fmt.Errorf("summarize description: %w", err)
	}
	embeddable, err := w.extractor.Embeddable(ctx, fields.Description)
	if err != nil {
		return true, fmt.Errorf("build embeddable description: %w", err)
	}
	embedding, err := w.extractor.Embed(ctx, embeddable)
	if err != nil {
		return true, fmt.Errorf("embed description: %w", err)
	}

	metadata := w.resolveMetadata(ctx, fields)

	id, err := w.store.SaveAudiobook(ctx, catalog.SaveAudiobookRequest{
		Path:                  task.URL,
		Fields:                fields,
		VeryShortDescription:  short,
		EmbeddableDescription: embeddable,
		Embedding:             embedding,
		Metadata:              metadata,
	})
	if err != nil {
		return true, fmt.Errorf("save audiobook: %w", err)
	}
	metrics.ObserveIngested()
	w.logger.Info("audiobook ingested", zap.Int64("audiobook_id", id), zap.String("url", task.URL))

	if err := w.queue.Send(ctx, w.cfg.NotificationsQueue, catalog.IngestedEvent{AudiobookID: id}); err != nil {
		return true, fmt.Errorf("emit ingested event: %w", err)
	}
	return true, nil
}

// archivePage stores the raw page body keyed by its digest. Failures are
// logged; archiving never blocks ingestion.
func (w *Worker) archivePage(ctx context.Context, page catalog.Page) {
	digest, err := w.hasher.Hash(page.Body)
	if err != nil {
		w.logger.Warn("hash page body", zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s.html", w.cfg.ArchivePrefix, digest)
	uri, err := w.archive.PutObject(ctx, path, w.cfg.ArchiveContentType, page.Body)
	if err != nil {
		w.logger.Warn("archive page", zap.String("url", page.URL), zap.Error(err))
		return
	}
	w.logger.Debug("page archived", zap.String("url", page.URL), zap.String("uri", uri))
}

// resolveMetadata looks up third-party metadata when the extraction yielded
// a usable title and author. Lookup failures degrade to no metadata.
func (w *Worker) resolveMetadata(ctx context.Context, fields catalog.ExtractedFields) *catalog.BookMetadata {
	if fields.Title == "" || len(fields.Authors) == 0 || fields.Authors[0] == "" {
		return nil
	}
	meta, err := w.resolver.Search(ctx, fields.Title, fields.Authors[0])
	if err != nil {
		w.logger.Error("metadata lookup failed", zap.String("title", fields.Title), zap.Error(err))
		return nil
	}
	return meta
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

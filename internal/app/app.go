// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container. It is initialized once at
// startup and handed to whichever command is running.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/api"
	"github.com/soundleaf/soundleaf/internal/archive"
	archivegcs "github.com/soundleaf/soundleaf/internal/archive/gcs"
	archivelocal "github.com/soundleaf/soundleaf/internal/archive/local"
	archivemem "github.com/soundleaf/soundleaf/internal/archive/memory"
	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/clock/system"
	"github.com/soundleaf/soundleaf/internal/config"
	"github.com/soundleaf/soundleaf/internal/extract"
	"github.com/soundleaf/soundleaf/internal/fetch"
	"github.com/soundleaf/soundleaf/internal/gemini"
	"github.com/soundleaf/soundleaf/internal/hardcover"
	"github.com/soundleaf/soundleaf/internal/hash/sha256"
	"github.com/soundleaf/soundleaf/internal/notify"
	pgqueue "github.com/soundleaf/soundleaf/internal/queue/postgres"
	"github.com/soundleaf/soundleaf/internal/search"
	"github.com/soundleaf/soundleaf/internal/store"
	"github.com/soundleaf/soundleaf/internal/worker"
)

// App holds the shared services every command builds on: the connection
// pool, the store, the durable queue, the archive and the model clients.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool      *pgxpool.Pool
	store     *store.Store
	queue     catalog.Queue
	archive   catalog.Archive
	gemini    *gemini.Client
	resolver  catalog.MetadataResolver
	fetcher   *fetch.Client
	extractor *extract.Extractor
}

// New wires up every shared service. It fails fast: a service that cannot
// be initialized aborts startup rather than limping along.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	pool, err := store.NewPool(ctx, cfg.DB.DSN, cfg.DB.MaxConns, cfg.DB.MinConns)
	if err != nil {
		return nil, err
	}

	st := store.New(pool, logger)

	q := pgqueue.New(pool, logger)
	for _, name := range []string{cfg.Queue.LiveQueue, cfg.Queue.BackfillQueue, cfg.Queue.NotificationsQueue} {
		if err := q.EnsureQueue(ctx, name); err != nil {
			pool.Close()
			return nil, err
		}
	}

	arch, err := newArchive(ctx, cfg.Archive, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	gem, err := gemini.New(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		ExtractModel:   cfg.Gemini.ExtractModel,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	var resolver catalog.MetadataResolver = noResolver{}
	if cfg.Hardcover.APIKey != "" {
		resolver, err = hardcover.New(hardcover.Config{APIKey: cfg.Hardcover.APIKey})
		if err != nil {
			pool.Close()
			return nil, err
		}
	} else {
		logger.Warn("no hardcover api key configured, metadata enrichment disabled")
	}

	fetcher := fetch.New(fetch.Config{
		DomainKeyword:    cfg.Crawler.DomainKeyword,
		MirrorExtensions: cfg.Crawler.MirrorExtensions,
		UserAgent:        cfg.Crawler.UserAgent,
	}, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		store:     st,
		queue:     q,
		archive:   arch,
		gemini:    gem,
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extract.New(gem, gem, cfg.Gemini.EmbeddingSize),
	}, nil
}

// Close releases the connection pool.
func (a *App) Close() {
	a.pool.Close()
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Queue returns the durable queue shared by the crawl and fan-out loops.
func (a *App) Queue() catalog.Queue {
	return a.queue
}

// NotificationsQueue names the queue carrying ingestion events.
func (a *App) NotificationsQueue() string {
	return a.cfg.Queue.NotificationsQueue
}

// Addr is the configured HTTP listen address.
func (a *App) Addr() string {
	return fmt.Sprintf(":%d", a.cfg.Server.Port)
}

// CrawlWorker builds a dispatch loop draining the named task queue.
func (a *App) CrawlWorker(queueName string) (*worker.Worker, error) {
	return worker.New(worker.Config{
		DomainKeyword:      a.cfg.Crawler.DomainKeyword,
		MirrorExtensions:   a.cfg.Crawler.MirrorExtensions,
		ListingPath:        a.cfg.Crawler.ListingPath,
		QueueName:          queueName,
		NotificationsQueue: a.cfg.Queue.NotificationsQueue,
		ArchivePrefix:      a.cfg.Archive.Prefix,
		ArchiveContentType: a.cfg.Archive.ContentType,
		FetchInterval:      a.cfg.Crawler.FetchInterval(),
		IdleInterval:       a.cfg.Crawler.IdleInterval(),
	}, a.fetcher, a.extractor, a.store, a.queue, a.resolver, a.archive, sha256.New(), a.logger)
}

// LiveWorker builds the dispatch loop for the live queue.
func (a *App) LiveWorker() (*worker.Worker, error) {
	return a.CrawlWorker(a.cfg.Queue.LiveQueue)
}

// BackfillWorker builds the dispatch loop for the backfill queue.
func (a *App) BackfillWorker() (*worker.Worker, error) {
	return a.CrawlWorker(a.cfg.Queue.BackfillQueue)
}

// NotifyWorker builds the notification fan-out loop.
func (a *App) NotifyWorker() *notify.Worker {
	return notify.New(notify.Config{
		QueueName:    a.cfg.Queue.NotificationsQueue,
		PollInterval: a.cfg.Notify.PollInterval(),
	}, a.store, a.queue, a.logger)
}

// Ranker builds the hybrid search ranker.
func (a *App) Ranker() *search.Ranker {
	return search.New(a.store, a.gemini, a.cfg.Gemini.EmbeddingSize, a.cfg.Search.MaxResults, a.logger)
}

// Server builds the HTTP read API backed by the cached reader.
func (a *App) Server() *api.Server {
	reader := NewCachedReader(a.store, a.cfg.Cache.TTL(), a.cfg.Cache.Capacity, system.New())
	return api.NewServer(reader, a.Ranker(), a.logger)
}

// newArchive selects the archive backend from configuration.
func newArchive(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (catalog.Archive, error) {
	switch cfg.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return archivegcs.New(client, archivegcs.Config{Bucket: cfg.GCSBucket})
	case "local":
		return archivelocal.New(archivelocal.Config{BaseDir: cfg.LocalDir})
	case "memory":
		return archivemem.NewBlobStore(), nil
	case "", "none":
		logger.Info("page archiving disabled")
		return archive.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// noResolver is used when no metadata credentials are configured. Every
// lookup reports no match.
type noResolver struct{}

func (noResolver) Search(_ context.Context, _, _ string) (*catalog.BookMetadata, error) {
	return nil, nil
}

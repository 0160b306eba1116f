package catalog

import (
	"context"
	"time"
)

// Fetcher retrieves a source page, handling mirror failover internally.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Generator produces text or schema-constrained JSON from a prompt. Any
// concrete provider (LLM API, local model, test fake) satisfies it.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string, schema map[string]any, out any) error
}

// EmbeddingTask tells the embedder how the vector will be used.
type EmbeddingTask string

// Embedding task types understood by the provider.
const (
	TaskRetrievalDocument EmbeddingTask = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    EmbeddingTask = "RETRIEVAL_QUERY"
)

// Embedder turns text into a normalized embedding vector of the requested
// dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string, task EmbeddingTask, dimensionality int) ([]float32, error)
}

// MetadataResolver looks up third-party metadata for a title/author pair.
// A nil result with nil error means no match was found.
type MetadataResolver interface {
	Search(ctx context.Context, title, author string) (*BookMetadata, error)
}

// Queue provides named, durable, at-most-once message delivery. Pop removes
// the message the moment it is read; it reports ok=false when the queue is
// empty.
type Queue interface {
	Send(ctx context.Context, queueName string, payload any) error
	Pop(ctx context.Context, queueName string, out any) (bool, error)
}

// Archive persists raw fetched pages and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SaveAudiobookRequest bundles everything the persistence writer stores in
// one transaction.
type SaveAudiobookRequest struct {
	Path                  string
	Fields                ExtractedFields
	VeryShortDescription  string
	EmbeddableDescription string
	Embedding             []float32
	Metadata              *BookMetadata
}

// IngestStore is the persistence surface the dispatch loop needs.
type IngestStore interface {
	AudiobookExists(ctx context.Context, path string) (bool, error)
	SaveAudiobook(ctx context.Context, req SaveAudiobookRequest) (int64, error)
}

// NotificationStore is the persistence surface the fan-out worker needs.
type NotificationStore interface {
	SeriesID(ctx context.Context, audiobookID int64) (*int64, error)
	RelatedEntityIDs(ctx context.Context, rel RelationType, audiobookID int64) ([]int64, error)
	SubscriberIDs(ctx context.Context, rel RelationType, entityID int64) ([]int64, error)
	UpsertNotifications(ctx context.Context, userIDs []int64, audiobookID int64, reason NotificationReason) error
}

// SearchStore runs the two retrieval sub-queries of the hybrid ranker.
type SearchStore interface {
	VectorTopK(ctx context.Context, embedding []float32, k int) ([]RankedID, error)
	LexicalTopK(ctx context.Context, query string, k int) ([]RankedID, error)
}

// ReadStore serves the paginated and aggregate read contracts wrapped by the
// cache-aside layer.
type ReadStore interface {
	GetAudiobooks(ctx context.Context, req CatalogRequest, limit uint32) ([]AudiobookWithRelations, error)
	GetMeta(ctx context.Context, req MetaRequest) (MetaResponse, error)
}

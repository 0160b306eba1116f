// Package catalog defines core types shared across subsystems.
package catalog

import "time"

// TaskKind discriminates crawl queue task variants.
type TaskKind string

// Task kinds serialized into queue messages.
const (
	TaskParseListing   TaskKind = "parse_listing_page"
	TaskParseAudiobook TaskKind = "parse_audiobook_page"
)

// Task is one unit of crawl work. ParseListing tasks only carry a URL;
// ParseAudiobook tasks also carry the submission date discovered on the
// listing page.
type Task struct {
	Kind           TaskKind `json:"kind"`
	URL            string   `json:"url"`
	SubmissionDate string   `json:"submission_date,omitempty"`
}

// NewListingTask builds a ParseListing task for the given URL.
func NewListingTask(url string) Task {
	return Task{Kind: TaskParseListing, URL: url}
}

// NewAudiobookTask builds a ParseAudiobook task.
func NewAudiobookTask(url, submissionDate string) Task {
	return Task{Kind: TaskParseAudiobook, URL: url, SubmissionDate: submissionDate}
}

// IngestedEvent is produced once per successfully persisted audiobook and
// consumed by the notification fan-out worker.
type IngestedEvent struct {
	AudiobookID int64 `json:"audiobook_id"`
}

// ExtractedFields is the fixed schema produced by the content extractor.
type ExtractedFields struct {
	Title        string   `json:"title" validate:"required"`
	Categories   []string `json:"categories"`
	Language     string   `json:"language"`
	Keywords     []string `json:"keywords"`
	CoverURL     string   `json:"cover_url"`
	Authors      []string `json:"authors"`
	Readers      []string `json:"read_by"`
	Format       string   `json:"format"`
	Bitrate      string   `json:"bitrate"`
	Unabridged   bool     `json:"unabridged"`
	Description  string   `json:"description"`
	FileSize     string   `json:"file_size"`
	Runtime      string   `json:"runtime"`
	PartOfSeries bool     `json:"is_part_of_series"`
	Series       string   `json:"series"`
	SeriesVol    string   `json:"series_volume"`
	UploadDate   string   `json:"upload_date"`
}

// ListingEntry is one audiobook discovered on a listing page.
type ListingEntry struct {
	URL            string `json:"url"`
	SubmissionDate string `json:"submission_date"`
}

// Listing is the structured output of parsing a listing page.
type Listing struct {
	Submissions []ListingEntry `json:"submissions"`
}

// Page is a fetched source page.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Audiobook is the canonical ingested catalog record. Path is the unique
// dedup key; ID is assigned on insert and referenced by every downstream row.
type Audiobook struct {
	ID                    int64     `json:"id"`
	Title                 string    `json:"title"`
	Language              string    `json:"language"`
	CoverURL              string    `json:"cover_url"`
	Format                string    `json:"format"`
	Unabridged            bool      `json:"unabridged"`
	Description           string    `json:"description"`
	VeryShortDescription  string    `json:"very_short_description"`
	EmbeddableDescription string    `json:"description_for_embeddings"`
	Bitrate               *int32    `json:"bitrate,omitempty"`
	FileSizeBytes         *int64    `json:"file_size,omitempty"`
	SeriesID              *int64    `json:"series_id,omitempty"`
	Path                  string    `json:"path"`
	TimestampCreated      time.Time `json:"timestamp_created"`
	TimestampIngested     time.Time `json:"timestamp_ingested"`
}

// RelationEntity is a named entity linked to audiobooks (author, reader,
// category, keyword or series).
type RelationEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AudiobookWithRelations is the read-path shape: the record plus its
// resolved relation entities.
type AudiobookWithRelations struct {
	Audiobook
	Authors    []RelationEntity `json:"authors"`
	Readers    []RelationEntity `json:"readers"`
	Categories []RelationEntity `json:"categories"`
	Keywords   []RelationEntity `json:"keywords"`
	Series     *RelationEntity  `json:"series,omitempty"`
}

// RelationType names the relation tables an audiobook links to.
type RelationType string

// Relation types used by fan-out and subscriptions.
const (
	RelationSeries   RelationType = "series"
	RelationAuthor   RelationType = "author"
	RelationReader   RelationType = "reader"
	RelationCategory RelationType = "category"
	RelationKeyword  RelationType = "keyword"
)

// NotificationReason maps to the Postgres notification_reason enum.
type NotificationReason string

// Reasons recorded on user notifications.
const (
	ReasonMatchSeries   NotificationReason = "match_series"
	ReasonMatchAuthor   NotificationReason = "match_author"
	ReasonMatchReader   NotificationReason = "match_reader"
	ReasonMatchCategory NotificationReason = "match_category"
	ReasonMatchKeyword  NotificationReason = "match_keyword"
)

// ReasonFor returns the notification reason recorded for a relation match.
func ReasonFor(rel RelationType) NotificationReason {
	switch rel {
	case RelationSeries:
		return ReasonMatchSeries
	case RelationAuthor:
		return ReasonMatchAuthor
	case RelationReader:
		return ReasonMatchReader
	case RelationCategory:
		return ReasonMatchCategory
	default:
		return ReasonMatchKeyword
	}
}

// UserNotification is one row keyed by (user, audiobook). Reasons is the
// union of every fan-out pass that ever matched the pair.
type UserNotification struct {
	UserID      int64                `json:"user_id"`
	AudiobookID int64                `json:"audiobook_id"`
	CreatedAt   time.Time            `json:"created_at"`
	Reasons     []NotificationReason `json:"reasons"`
	Seen        bool                 `json:"has_been_seen"`
}

// Subscription records a user's interest in one relation entity.
type Subscription struct {
	UserID     int64        `json:"user_id"`
	Relation   RelationType `json:"relation"`
	RelationID int64        `json:"relation_id"`
}

// BookMetadata is the optional third-party record resolved for an ingested
// audiobook, stored verbatim next to it.
type BookMetadata struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingsCount *int64   `json:"ratings_count,omitempty"`
	Slug         *string  `json:"slug,omitempty"`
	ReviewsCount *int64   `json:"reviews_count,omitempty"`
}

// RankedID is one row of a retrieval sub-query result, already ordered by
// the query itself.
type RankedID struct {
	ID    int64
	Score float64
}

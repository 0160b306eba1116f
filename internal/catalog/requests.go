package catalog

import "fmt"

// CatalogRequestKind discriminates paginated catalog read variants.
type CatalogRequestKind string

// Catalog read variants wrapped by the cache-aside layer.
const (
	CatalogMostRecent CatalogRequestKind = "most_recent"
	CatalogByAuthor   CatalogRequestKind = "by_author"
	CatalogByReader   CatalogRequestKind = "by_reader"
	CatalogByCategory CatalogRequestKind = "by_category"
	CatalogByKeyword  CatalogRequestKind = "by_keyword"
	CatalogBySeries   CatalogRequestKind = "by_series"
	CatalogByID       CatalogRequestKind = "by_id"
	CatalogByIDList   CatalogRequestKind = "by_id_list"
)

// CatalogRequest is a discriminated catalog read request. Comparable so it
// can serve directly as a cache key; IDList is a comma-joined string for the
// same reason.
type CatalogRequest struct {
	Kind       CatalogRequestKind `json:"kind"`
	RelationID int64              `json:"relation_id,omitempty"`
	IDList     string             `json:"id_list,omitempty"`
	Page       uint32             `json:"page,omitempty"`
}

// CacheKey renders a stable string identity for single-flight grouping.
func (r CatalogRequest) CacheKey() string {
	return fmt.Sprintf("catalog/%s/%d/%s/%d", r.Kind, r.RelationID, r.IDList, r.Page)
}

// MetaRequestKind discriminates aggregate/listing read variants.
type MetaRequestKind string

// Meta read variants wrapped by the cache-aside layer.
const (
	MetaAlphabetical MetaRequestKind = "alphabetical"
	MetaByPublished  MetaRequestKind = "by_published"
	MetaCount        MetaRequestKind = "count"
	MetaCountAll     MetaRequestKind = "count_all"
)

// MetaRequest is a discriminated aggregate read request over one relation
// type. Comparable, used directly as a cache key.
type MetaRequest struct {
	Kind       MetaRequestKind `json:"kind"`
	Relation   RelationType    `json:"relation,omitempty"`
	RelationID int64           `json:"relation_id,omitempty"`
	Page       uint32          `json:"page,omitempty"`
	Limit      uint32          `json:"limit,omitempty"`
}

// CacheKey renders a stable string identity for single-flight grouping.
func (r MetaRequest) CacheKey() string {
	return fmt.Sprintf("meta/%s/%s/%d/%d/%d", r.Kind, r.Relation, r.RelationID, r.Page, r.Limit)
}

// MetaResponse carries either a relation listing or a count depending on the
// request kind.
type MetaResponse struct {
	Entities []RelationEntity `json:"entities,omitempty"`
	Count    int64            `json:"count"`
}

package app

import (
	"context"
	"time"

	"github.com/soundleaf/soundleaf/internal/cache"
	"github.com/soundleaf/soundleaf/internal/catalog"
)

// catalogPageSize is the fixed number of audiobooks per catalog page. It is
// part of the read contract, so it is not configurable.
const catalogPageSize = 20

// CachedReader fronts the read store with one TTL cache per request family.
// Requests are their own cache keys, so identical reads within the TTL share
// one store round trip.
type CachedReader struct {
	store    catalog.ReadStore
	catalogs *cache.Cache[catalog.CatalogRequest, []catalog.AudiobookWithRelations]
	metas    *cache.Cache[catalog.MetaRequest, catalog.MetaResponse]
}

// NewCachedReader builds a CachedReader over the given store.
func NewCachedReader(st catalog.ReadStore, ttl time.Duration, capacity int, clk catalog.Clock) *CachedReader {
	return &CachedReader{
		store:    st,
		catalogs: cache.New[catalog.CatalogRequest, []catalog.AudiobookWithRelations](ttl, capacity, clk),
		metas:    cache.New[catalog.MetaRequest, catalog.MetaResponse](ttl, capacity, clk),
	}
}

// GetAudiobooks serves a catalog read through the cache.
func (r *CachedReader) GetAudiobooks(ctx context.Context, req catalog.CatalogRequest) ([]catalog.AudiobookWithRelations, error) {
	return r.catalogs.GetOrCompute(ctx, req, func(ctx context.Context) ([]catalog.AudiobookWithRelations, error) {
		return r.store.GetAudiobooks(ctx, req, catalogPageSize)
	})
}

// GetMeta serves an aggregate read through the cache.
func (r *CachedReader) GetMeta(ctx context.Context, req catalog.MetaRequest) (catalog.MetaResponse, error) {
	return r.metas.GetOrCompute(ctx, req, func(ctx context.Context) (catalog.MetaResponse, error) {
		return r.store.GetMeta(ctx, req)
	})
}

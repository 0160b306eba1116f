// Package search implements hybrid retrieval: a vector and a lexical
// sub-query run concurrently and their rankings are fused with reciprocal
// rank fusion.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/metrics"
)

const rrfK = 60.0

// Ranker answers free-text queries with a fused ranking of audiobook ids.
type Ranker struct {
	store    catalog.SearchStore
	embedder catalog.Embedder
	dim      int
	maxHits  int
	logger   *zap.Logger
}

// New constructs a Ranker. maxHits bounds each sub-query and therefore the
// fused result.
func New(store catalog.SearchStore, embedder catalog.Embedder, dim, maxHits int, logger *zap.Logger) *Ranker {
	return &Ranker{store: store, embedder: embedder, dim: dim, maxHits: maxHits, logger: logger}
}

// Search embeds the query, runs both sub-queries concurrently and returns
// the fused id ranking, best first.
func (r *Ranker) Search(ctx context.Context, query string) ([]int64, error) {
	start := time.Now()

	embedding, err := r.embedder.Embed(ctx, query, catalog.TaskRetrievalQuery, r.dim)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var vectorHits, lexicalHits []catalog.RankedID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorHits, err = r.store.VectorTopK(gctx, embedding, r.maxHits)
		return err
	})
	g.Go(func() error {
		var err error
		lexicalHits, err = r.store.LexicalTopK(gctx, query, r.maxHits)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run retrieval queries: %w", err)
	}

	ids := fuse(vectorHits, lexicalHits)
	metrics.ObserveSearch(time.Since(start))
	r.logger.Debug("search ranked",
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("lexical_hits", len(lexicalHits)),
		zap.Int("fused", len(ids)))
	return ids, nil
}

// fuse combines the two rankings with reciprocal rank fusion. Each list
// contributes 1/(k+rank+1) per id; ids in both lists sum their
// contributions. Ties break on ascending id so equal-score results are
// stable across runs.
func fuse(lists ...[]catalog.RankedID) []int64 {
	scores := make(map[int64]float64)
	for _, list := range lists {
		for rank, hit := range list {
			scores[hit.ID] += 1.0 / (rrfK + float64(rank) + 1.0)
		}
	}

	fused := make([]catalog.RankedID, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, catalog.RankedID{ID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	ids := make([]int64, len(fused))
	for i, hit := range fused {
		ids[i] = hit.ID
	}
	return ids
}

// Package api exposes the HTTP interface of the catalog: health probes,
// Prometheus metrics, the paginated catalog reads, the aggregate meta reads
// and hybrid search.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/metrics"
)

const requestTimeout = 30 * time.Second

// CatalogReader serves the read contracts, normally through the cache-aside
// layer.
type CatalogReader interface {
	GetAudiobooks(ctx context.Context, req catalog.CatalogRequest) ([]catalog.AudiobookWithRelations, error)
	GetMeta(ctx context.Context, req catalog.MetaRequest) (catalog.MetaResponse, error)
}

// Searcher answers free-text queries with a ranked id list.
type Searcher interface {
	Search(ctx context.Context, query string) ([]int64, error)
}

// Server wires the HTTP routes to the read layer and the ranker.
type Server struct {
	router   chi.Router
	reader   CatalogReader
	searcher Searcher
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(reader CatalogReader, searcher Searcher, logger *zap.Logger) *Server {
	s := &Server{
		reader:   reader,
		searcher: searcher,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/recent", s.recentAudiobooks)
			r.Get("/{relation}/{id}", s.audiobooksByRelation)
			r.Get("/{id}", s.audiobookByID)
		})
		r.Route("/meta", func(r chi.Router) {
			r.Get("/count", s.countAll)
			r.Get("/{relation}", s.listRelation)
			r.Get("/{relation}/{id}/count", s.countForRelation)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	ids, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"audiobooks": []any{}})
		return
	}

	books, err := s.reader.GetAudiobooks(r.Context(), catalog.CatalogRequest{
		Kind:   catalog.CatalogByIDList,
		IDList: joinIDs(ids),
	})
	if err != nil {
		s.logger.Error("hydrate search results failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audiobooks": books})
}

func (s *Server) recentAudiobooks(w http.ResponseWriter, r *http.Request) {
	s.serveAudiobooks(w, r, catalog.CatalogRequest{
		Kind: catalog.CatalogMostRecent,
		Page: parsePage(r),
	})
}

func (s *Server) audiobooksByRelation(w http.ResponseWriter, r *http.Request) {
	kind, ok := catalogKindFor(chi.URLParam(r, "relation"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown relation")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.serveAudiobooks(w, r, catalog.CatalogRequest{
		Kind:       kind,
		RelationID: id,
		Page:       parsePage(r),
	})
}

func (s *Server) audiobookByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	books, err := s.reader.GetAudiobooks(r.Context(), catalog.CatalogRequest{
		Kind:       catalog.CatalogByID,
		RelationID: id,
	})
	if err != nil {
		s.logger.Error("load audiobook failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load audiobook")
		return
	}
	if len(books) == 0 {
		writeError(w, http.StatusNotFound, "audiobook not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audiobook": books[0]})
}

func (s *Server) serveAudiobooks(w http.ResponseWriter, r *http.Request, req catalog.CatalogRequest) {
	books, err := s.reader.GetAudiobooks(r.Context(), req)
	if err != nil {
		s.logger.Error("load audiobooks failed", zap.String("kind", string(req.Kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load audiobooks")
		return
	}
	if books == nil {
		books = []catalog.AudiobookWithRelations{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audiobooks": books})
}

func (s *Server) listRelation(w http.ResponseWriter, r *http.Request) {
	rel, ok := relationFor(chi.URLParam(r, "relation"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown relation")
		return
	}
	kind := catalog.MetaAlphabetical
	if r.URL.Query().Get("sort") == "published" {
		kind = catalog.MetaByPublished
	}
	resp, err := s.reader.GetMeta(r.Context(), catalog.MetaRequest{
		Kind:     kind,
		Relation: rel,
		Page:     parsePage(r),
		Limit:    parseLimit(r),
	})
	if err != nil {
		s.logger.Error("list relation failed", zap.String("relation", string(rel)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	entities := resp.Entities
	if entities == nil {
		entities = []catalog.RelationEntity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (s *Server) countForRelation(w http.ResponseWriter, r *http.Request) {
	rel, ok := relationFor(chi.URLParam(r, "relation"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown relation")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	resp, err := s.reader.GetMeta(r.Context(), catalog.MetaRequest{
		Kind:       catalog.MetaCount,
		Relation:   rel,
		RelationID: id,
	})
	if err != nil {
		s.logger.Error("count for relation failed", zap.String("relation", string(rel)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count audiobooks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": resp.Count})
}

func (s *Server) countAll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reader.GetMeta(r.Context(), catalog.MetaRequest{Kind: catalog.MetaCountAll})
	if err != nil {
		s.logger.Error("count all failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count audiobooks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": resp.Count})
}

func catalogKindFor(relation string) (catalog.CatalogRequestKind, bool) {
	switch relation {
	case "author":
		return catalog.CatalogByAuthor, true
	case "reader":
		return catalog.CatalogByReader, true
	case "category":
		return catalog.CatalogByCategory, true
	case "keyword":
		return catalog.CatalogByKeyword, true
	case "series":
		return catalog.CatalogBySeries, true
	default:
		return "", false
	}
}

func relationFor(relation string) (catalog.RelationType, bool) {
	switch relation {
	case "author":
		return catalog.RelationAuthor, true
	case "reader":
		return catalog.RelationReader, true
	case "category":
		return catalog.RelationCategory, true
	case "keyword":
		return catalog.RelationKeyword, true
	case "series":
		return catalog.RelationSeries, true
	default:
		return "", false
	}
}

func parsePage(r *http.Request) uint32 {
	page, err := strconv.ParseUint(r.URL.Query().Get("page"), 10, 32)
	if err != nil || page == 0 {
		return 1
	}
	return uint32(page)
}

func parseLimit(r *http.Request) uint32 {
	limit, err := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 32)
	if err != nil || limit == 0 || limit > 200 {
		return 50
	}
	return uint32(limit)
}

func joinIDs(ids []int64) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

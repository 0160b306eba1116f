package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

type fakeReader struct {
	catalogReqs []catalog.CatalogRequest
	metaReqs    []catalog.MetaRequest

	books    []catalog.AudiobookWithRelations
	bookErr  error
	meta     catalog.MetaResponse
	metaErr  error
}

func (f *fakeReader) GetAudiobooks(_ context.Context, req catalog.CatalogRequest) ([]catalog.AudiobookWithRelations, error) {
	f.catalogReqs = append(f.catalogReqs, req)
	return f.books, f.bookErr
}

func (f *fakeReader) GetMeta(_ context.Context, req catalog.MetaRequest) (catalog.MetaResponse, error) {
	f.metaReqs = append(f.metaReqs, req)
	return f.meta, f.metaErr
}

type fakeSearcher struct {
	query string
	ids   []int64
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]int64, error) {
	f.query = query
	return f.ids, f.err
}

func newTestServer(t *testing.T, reader *fakeReader, searcher *fakeSearcher) *httptest.Server {
	t.Helper()
	if reader == nil {
		reader = &fakeReader{}
	}
	if searcher == nil {
		searcher = &fakeSearcher{}
	}
	srv := httptest.NewServer(NewServer(reader, searcher, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func book(id int64, title string) catalog.AudiobookWithRelations {
	return catalog.AudiobookWithRelations{
		Audiobook: catalog.Audiobook{ID: id, Title: title},
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, nil)

	var body map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/readyz", &body))
	assert.Equal(t, "ready", body["status"])
}

func TestSearchHydratesRankedIDs(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{books: []catalog.AudiobookWithRelations{
		book(7, "Leviathan Wakes"),
		book(2, "Caliban's War"),
	}}
	searcher := &fakeSearcher{ids: []int64{7, 2}}
	srv := newTestServer(t, reader, searcher)

	var body struct {
		Audiobooks []catalog.AudiobookWithRelations `json:"audiobooks"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/search?q=expanse", &body))

	assert.Equal(t, "expanse", searcher.query)
	require.Len(t, reader.catalogReqs, 1)
	assert.Equal(t, catalog.CatalogByIDList, reader.catalogReqs[0].Kind)
	assert.Equal(t, "7,2", reader.catalogReqs[0].IDList)
	require.Len(t, body.Audiobooks, 2)
	assert.Equal(t, "Leviathan Wakes", body.Audiobooks[0].Title)
}

func TestSearchRequiresQuery(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, nil)

	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/search", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/search?q=%20", nil))
}

func TestSearchEmptyResultSkipsHydration(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{}
	srv := newTestServer(t, reader, &fakeSearcher{ids: nil})

	var body struct {
		Audiobooks []catalog.AudiobookWithRelations `json:"audiobooks"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/search?q=nothing", &body))
	assert.Empty(t, body.Audiobooks)
	assert.Empty(t, reader.catalogReqs)
}

func TestSearchFailure(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, &fakeSearcher{err: errors.New("embedding provider down")})

	require.Equal(t, http.StatusInternalServerError, getJSON(t, srv.URL+"/v1/search?q=x", nil))
}

func TestRecentAudiobooks(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{books: []catalog.AudiobookWithRelations{book(1, "Dune")}}
	srv := newTestServer(t, reader, nil)

	var body struct {
		Audiobooks []catalog.AudiobookWithRelations `json:"audiobooks"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/catalog/recent?page=3", &body))

	require.Len(t, reader.catalogReqs, 1)
	assert.Equal(t, catalog.CatalogMostRecent, reader.catalogReqs[0].Kind)
	assert.Equal(t, uint32(3), reader.catalogReqs[0].Page)
	require.Len(t, body.Audiobooks, 1)
}

func TestAudiobooksByRelation(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{}
	srv := newTestServer(t, reader, nil)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/catalog/author/42?page=2", nil))

	require.Len(t, reader.catalogReqs, 1)
	assert.Equal(t, catalog.CatalogByAuthor, reader.catalogReqs[0].Kind)
	assert.Equal(t, int64(42), reader.catalogReqs[0].RelationID)
	assert.Equal(t, uint32(2), reader.catalogReqs[0].Page)
}

func TestAudiobooksByRelationRejectsUnknown(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, nil)

	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/catalog/publisher/1", nil))
}

func TestAudiobookByID(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{books: []catalog.AudiobookWithRelations{book(9, "Hyperion")}}
	srv := newTestServer(t, reader, nil)

	var body struct {
		Audiobook catalog.AudiobookWithRelations `json:"audiobook"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/catalog/9", &body))

	require.Len(t, reader.catalogReqs, 1)
	assert.Equal(t, catalog.CatalogByID, reader.catalogReqs[0].Kind)
	assert.Equal(t, int64(9), reader.catalogReqs[0].RelationID)
	assert.Equal(t, "Hyperion", body.Audiobook.Title)
}

func TestAudiobookByIDNotFound(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeReader{}, nil)

	require.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/catalog/999", nil))
}

func TestListRelation(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{meta: catalog.MetaResponse{Entities: []catalog.RelationEntity{
		{ID: 1, Name: "Frank Herbert"},
	}}}
	srv := newTestServer(t, reader, nil)

	var body struct {
		Entities []catalog.RelationEntity `json:"entities"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/meta/author?page=2&limit=25", &body))

	require.Len(t, reader.metaReqs, 1)
	assert.Equal(t, catalog.MetaAlphabetical, reader.metaReqs[0].Kind)
	assert.Equal(t, catalog.RelationAuthor, reader.metaReqs[0].Relation)
	assert.Equal(t, uint32(2), reader.metaReqs[0].Page)
	assert.Equal(t, uint32(25), reader.metaReqs[0].Limit)
	require.Len(t, body.Entities, 1)
}

func TestListRelationSortedByPublished(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{}
	srv := newTestServer(t, reader, nil)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/meta/category?sort=published", nil))

	require.Len(t, reader.metaReqs, 1)
	assert.Equal(t, catalog.MetaByPublished, reader.metaReqs[0].Kind)
	assert.Equal(t, catalog.RelationCategory, reader.metaReqs[0].Relation)
}

func TestCountForRelation(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{meta: catalog.MetaResponse{Count: 17}}
	srv := newTestServer(t, reader, nil)

	var body map[string]int64
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/meta/series/5/count", &body))

	require.Len(t, reader.metaReqs, 1)
	assert.Equal(t, catalog.MetaCount, reader.metaReqs[0].Kind)
	assert.Equal(t, catalog.RelationSeries, reader.metaReqs[0].Relation)
	assert.Equal(t, int64(5), reader.metaReqs[0].RelationID)
	assert.Equal(t, int64(17), body["count"])
}

func TestCountAll(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{meta: catalog.MetaResponse{Count: 12345}}
	srv := newTestServer(t, reader, nil)

	var body map[string]int64
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/meta/count", &body))
	assert.Equal(t, int64(12345), body["count"])
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestParseLimitBounds(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		query string
		want  uint32
	}{
		{"", 50},
		{"limit=0", 50},
		{"limit=500", 50},
		{"limit=120", 120},
	} {
		r := httptest.NewRequest(http.MethodGet, "/v1/meta/author?"+tc.query, nil)
		assert.Equal(t, tc.want, parseLimit(r), tc.query)
	}
}

package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archmem "github.com/soundleaf/soundleaf/internal/archive/memory"
	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/hash/sha256"
	queuemem "github.com/soundleaf/soundleaf/internal/queue/memory"
)

type fakeFetcher struct {
	pages map[string]catalog.Page
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (catalog.Page, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return catalog.Page{}, err
	}
	page, ok := f.pages[url]
	if !ok {
		return catalog.Page{URL: url, StatusCode: 200, Body: []byte("<html></html>")}, nil
	}
	return page, nil
}

type fakeExtractor struct {
	listing    catalog.Listing
	listingErr error
	fields     catalog.ExtractedFields
	fieldsErr  error
}

func (f *fakeExtractor) Extract(context.Context, catalog.Page) (catalog.ExtractedFields, error) {
	return f.fields, f.fieldsErr
}

func (f *fakeExtractor) ExtractListing(context.Context, catalog.Page, string) (catalog.Listing, error) {
	return f.listing, f.listingErr
}

func (f *fakeExtractor) Summarize(_ context.Context, d string) (string, error) {
	return "short: " + d, nil
}

func (f *fakeExtractor) Embeddable(_ context.Context, d string) (string, error) {
	return "embeddable: " + d, nil
}

func (f *fakeExtractor) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.6, 0.8}, nil
}

type fakeIngestStore struct {
	existing map[string]bool
	saved    []catalog.SaveAudiobookRequest
	nextID   int64
	saveErr  error
}

func (f *fakeIngestStore) AudiobookExists(_ context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeIngestStore) SaveAudiobook(_ context.Context, req catalog.SaveAudiobookRequest) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, req)
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	f.existing[req.Path] = true
	f.nextID++
	return f.nextID, nil
}

type fakeResolver struct {
	meta *catalog.BookMetadata
	err  error
}

func (f *fakeResolver) Search(context.Context, string, string) (*catalog.BookMetadata, error) {
	return f.meta, f.err
}

func testConfig() Config {
	return Config{
		DomainKeyword:      "audiobooks",
		MirrorExtensions:   []string{"lu", "is"},
		ListingPath:        "member/index?pid=%d",
		QueueName:          "scrape_latest",
		NotificationsQueue: "notifications",
		FetchInterval:      30 * time.Second,
		IdleInterval:       1800 * time.Second,
	}
}

type testHarness struct {
	worker  *Worker
	fetcher *fakeFetcher
	store   *fakeIngestStore
	queue   *queuemem.Queue
	slept   []time.Duration
}

func newHarness(t *testing.T, extractor *fakeExtractor, store *fakeIngestStore) *testHarness {
	t.Helper()

	h := &testHarness{
		fetcher: &fakeFetcher{},
		store:   store,
		queue:   queuemem.New(),
	}
	w, err := New(testConfig(), h.fetcher, extractor, store, h.queue,
		&fakeResolver{}, archmem.NewBlobStore(), sha256.New(), zap.NewNop())
	require.NoError(t, err)
	w.sleep = func(_ context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	h.worker = w
	return h
}

func TestDrainListingEnqueuesOnlyNewAudiobooks(t *testing.T) {
	extractor := &fakeExtractor{
		listing: catalog.Listing{Submissions: []catalog.ListingEntry{
			{URL: "/abss/new-book/", SubmissionDate: "2026-08-30"},
			{URL: "/abss/known-book/", SubmissionDate: "2026-08-29"},
		}},
	}
	store := &fakeIngestStore{existing: map[string]bool{
		"https://audiobooks.lu/abss/known-book/": true,
	}}
	h := newHarness(t, extractor, store)
	ctx := context.Background()

	require.NoError(t, h.queue.Send(ctx, "scrape_latest", catalog.NewListingTask("https://audiobooks.lu/member/index?pid=1")))

	// The drain stops once the listing task and the enqueued audiobook task
	// are both handled.
	extractor.fields = catalog.ExtractedFields{Title: "New Book", Description: "d"}
	require.NoError(t, h.worker.drain(ctx))

	require.Len(t, store.saved, 1)
	require.Equal(t, "https://audiobooks.lu/abss/new-book/", store.saved[0].Path)
}

func TestDrainIsIdempotentAcrossRuns(t *testing.T) {
	extractor := &fakeExtractor{
		listing: catalog.Listing{Submissions: []catalog.ListingEntry{
			{URL: "/abss/book/", SubmissionDate: "2026-08-30"},
		}},
		fields: catalog.ExtractedFields{Title: "Book", Description: "d"},
	}
	store := &fakeIngestStore{}
	h := newHarness(t, extractor, store)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, h.queue.Send(ctx, "scrape_latest", catalog.NewListingTask("https://audiobooks.lu/member/index?pid=1")))
		require.NoError(t, h.worker.drain(ctx))
	}

	// Replaying the same listing never duplicates the audiobook row.
	require.Len(t, store.saved, 1)
}

func TestHandleAudiobookSkipsExistingWithoutFetch(t *testing.T) {
	store := &fakeIngestStore{existing: map[string]bool{
		"https://audiobooks.lu/abss/book/": true,
	}}
	h := newHarness(t, &fakeExtractor{}, store)

	made, err := h.worker.handleAudiobook(context.Background(),
		catalog.NewAudiobookTask("https://audiobooks.lu/abss/book/", "2026-08-30"))
	require.NoError(t, err)
	require.False(t, made)
	require.Empty(t, h.fetcher.calls)
}

func TestHandleAudiobookEmitsIngestedEvent(t *testing.T) {
	extractor := &fakeExtractor{
		fields: catalog.ExtractedFields{
			Title:       "Dune",
			Authors:     []string{"Frank Herbert"},
			Description: "desert",
		},
	}
	store := &fakeIngestStore{}
	h := newHarness(t, extractor, store)
	ctx := context.Background()

	made, err := h.worker.handleAudiobook(ctx,
		catalog.NewAudiobookTask("https://audiobooks.lu/abss/dune/", "2026-08-30"))
	require.NoError(t, err)
	require.True(t, made)

	var ev catalog.IngestedEvent
	ok, err := h.queue.Pop(ctx, "notifications", &ev)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), ev.AudiobookID)

	require.Len(t, store.saved, 1)
	require.Equal(t, "short: desert", store.saved[0].VeryShortDescription)
	require.Equal(t, "embeddable: desert", store.saved[0].EmbeddableDescription)
	require.Equal(t, []float32{0.6, 0.8}, store.saved[0].Embedding)
}

func TestDrainRejectsForeignDomainTask(t *testing.T) {
	store := &fakeIngestStore{}
	h := newHarness(t, &fakeExtractor{}, store)
	ctx := context.Background()

	require.NoError(t, h.queue.Send(ctx, "scrape_latest",
		catalog.NewAudiobookTask("https://evil.example/abss/book/", "2026-08-30")))
	require.NoError(t, h.worker.drain(ctx))

	require.Empty(t, h.fetcher.calls)
	require.Empty(t, store.saved)
	// Rejected tasks skip the politeness sleep.
	require.Empty(t, h.slept)
}

func TestDrainContinuesAfterAudiobookFailure(t *testing.T) {
	extractor := &fakeExtractor{
		fields: catalog.ExtractedFields{Title: "Second", Description: "d"},
	}
	store := &fakeIngestStore{}
	h := newHarness(t, extractor, store)
	h.fetcher.errs = map[string]error{
		"https://audiobooks.lu/abss/broken/": errors.New("all mirrors failed"),
	}
	ctx := context.Background()

	require.NoError(t, h.queue.Send(ctx, "scrape_latest",
		catalog.NewAudiobookTask("https://audiobooks.lu/abss/broken/", "2026-08-29")))
	require.NoError(t, h.queue.Send(ctx, "scrape_latest",
		catalog.NewAudiobookTask("https://audiobooks.lu/abss/second/", "2026-08-30")))

	require.NoError(t, h.worker.drain(ctx))

	// The failed task is logged and dropped; the next one still ingests.
	require.Len(t, store.saved, 1)
	require.Equal(t, "https://audiobooks.lu/abss/second/", store.saved[0].Path)
}

func TestDrainSleepsAfterEachFetch(t *testing.T) {
	extractor := &fakeExtractor{
		fields: catalog.ExtractedFields{Title: "Book", Description: "d"},
	}
	h := newHarness(t, extractor, &fakeIngestStore{})
	ctx := context.Background()

	require.NoError(t, h.queue.Send(ctx, "scrape_latest",
		catalog.NewAudiobookTask("https://audiobooks.lu/abss/book/", "2026-08-30")))
	require.NoError(t, h.worker.drain(ctx))

	require.Equal(t, []time.Duration{30 * time.Second}, h.slept)
}

func TestRunBackfillDescendsPages(t *testing.T) {
	extractor := &fakeExtractor{}
	h := newHarness(t, extractor, &fakeIngestStore{})

	require.NoError(t, h.worker.RunBackfill(context.Background(), 2, 5))

	require.Equal(t, []string{
		"https://audiobooks.lu/member/index?pid=4",
		"https://audiobooks.lu/member/index?pid=3",
		"https://audiobooks.lu/member/index?pid=2",
	}, h.fetcher.calls)
}

func TestListingURL(t *testing.T) {
	h := newHarness(t, &fakeExtractor{}, &fakeIngestStore{})

	got, err := h.worker.listingURL(7)
	require.NoError(t, err)
	require.Equal(t, "https://audiobooks.lu/member/index?pid=7", got)
}

type fakeArchive struct {
	paths        []string
	contentTypes []string
}

func (f *fakeArchive) PutObject(_ context.Context, path, contentType string, _ []byte) (string, error) {
	f.paths = append(f.paths, path)
	f.contentTypes = append(f.contentTypes, contentType)
	return "memory://" + path, nil
}

func TestArchivePageUsesConfiguredPrefixAndContentType(t *testing.T) {
	cfg := testConfig()
	cfg.ArchivePrefix = "raw/html"
	cfg.ArchiveContentType = "text/html; charset=utf-8"

	arch := &fakeArchive{}
	w, err := New(cfg, &fakeFetcher{}, &fakeExtractor{}, &fakeIngestStore{}, queuemem.New(),
		&fakeResolver{}, arch, sha256.New(), zap.NewNop())
	require.NoError(t, err)

	w.archivePage(context.Background(), catalog.Page{
		URL:  "https://audiobooks.lu/abss/book/",
		Body: []byte("<html></html>"),
	})

	require.Len(t, arch.paths, 1)
	require.True(t, strings.HasPrefix(arch.paths[0], "raw/html/"))
	require.True(t, strings.HasSuffix(arch.paths[0], ".html"))
	require.Equal(t, []string{"text/html; charset=utf-8"}, arch.contentTypes)
}

func TestNewDefaultsArchiveSettings(t *testing.T) {
	w, err := New(testConfig(), &fakeFetcher{}, &fakeExtractor{}, &fakeIngestStore{}, queuemem.New(),
		&fakeResolver{}, &fakeArchive{}, sha256.New(), zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, "pages", w.cfg.ArchivePrefix)
	require.Equal(t, "text/html", w.cfg.ArchiveContentType)
}

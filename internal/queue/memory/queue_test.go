package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "tasks", catalog.NewListingTask("https://a.test/1")))
	require.NoError(t, q.Send(ctx, "tasks", catalog.NewListingTask("https://a.test/2")))

	var first, second catalog.Task
	ok, err := q.Pop(ctx, "tasks", &first)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://a.test/1", first.URL)

	ok, err = q.Pop(ctx, "tasks", &second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://a.test/2", second.URL)
}

func TestPopEmpty(t *testing.T) {
	t.Parallel()

	q := New()
	var out catalog.Task
	ok, err := q.Pop(context.Background(), "tasks", &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueuesAreIsolated(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "scrape_latest", catalog.NewListingTask("https://a.test/1")))

	var out catalog.Task
	ok, err := q.Pop(ctx, "scrape_backfill", &out)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, q.Len("scrape_latest"))
}

func TestPopIsAtMostOnce(t *testing.T) {
	t.Parallel()

	q := New()
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "events", catalog.IngestedEvent{AudiobookID: 9}))

	var ev catalog.IngestedEvent
	ok, err := q.Pop(ctx, "events", &ev)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), ev.AudiobookID)

	ok, err = q.Pop(ctx, "events", &ev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, q.Send(ctx, "tasks", struct{}{}))
	_, err := q.Pop(ctx, "tasks", &struct{}{})
	require.Error(t, err)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

type stringKey string

func (k stringKey) CacheKey() string { return string(k) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetOrComputeMemoizes(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[stringKey, int](time.Minute, 10, clock)

	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for range 3 {
		v, err := c.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)
		require.Equal(t, 42, v)
	}
	require.Equal(t, 1, calls)
}

func TestGetOrComputeExpires(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[stringKey, int](time.Minute, 10, clock)

	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	clock.Advance(2 * time.Minute)

	v, err = c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestGetOrComputeMemoizesErrors(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[stringKey, int](time.Minute, 10, clock)

	calls := 0
	boom := errors.New("upstream down")
	compute := func(context.Context) (int, error) {
		calls++
		return 0, boom
	}

	_, err := c.GetOrCompute(context.Background(), "k", compute)
	require.ErrorIs(t, err, boom)
	_, err = c.GetOrCompute(context.Background(), "k", compute)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestConcurrentRequestsShareOneComputation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[stringKey, int](time.Minute, 10, clock)

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "shared", compute)
			require.NoError(t, err)
			results[i] = v
		}()
	}

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		require.Equal(t, 7, v)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[stringKey, int](time.Hour, 2, clock)

	fixed := func(v int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return v, nil }
	}

	_, _ = c.GetOrCompute(context.Background(), "a", fixed(1))
	_, _ = c.GetOrCompute(context.Background(), "b", fixed(2))
	_, _ = c.GetOrCompute(context.Background(), "c", fixed(3))
	require.Equal(t, 2, c.Len())

	// "a" was evicted; recomputing it returns the new value.
	v, err := c.GetOrCompute(context.Background(), "a", fixed(9))
	require.NoError(t, err)
	require.Equal(t, 9, v)
}

var _ catalog.Clock = (*fakeClock)(nil)

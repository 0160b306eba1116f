// Package cache provides a TTL read-through cache with request collapsing:
// concurrent lookups of the same key share one computation, and both
// successful and failed results are memoized until they expire.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/metrics"
)

// Keyer renders a stable string identity for a request.
type Keyer interface {
	CacheKey() string
}

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
}

// Cache memoizes computed values per key for a fixed TTL, holding at most
// capacity entries. The zero value is not usable; construct with New.
type Cache[K Keyer, V any] struct {
	ttl      time.Duration
	capacity int
	clock    catalog.Clock

	mu      sync.Mutex
	entries map[string]entry[V]
	order   []string

	group singleflight.Group
}

// New constructs a Cache with the given TTL and entry capacity.
func New[K Keyer, V any](ttl time.Duration, capacity int, clock catalog.Clock) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:      ttl,
		capacity: capacity,
		clock:    clock,
		entries:  make(map[string]entry[V]),
	}
}

// GetOrCompute returns the cached result for the key, computing it at most
// once per expiry window. Errors are cached like values, so a failing
// upstream is not hammered by retries within the TTL.
func (c *Cache[K, V]) GetOrCompute(ctx context.Context, key K, compute func(ctx context.Context) (V, error)) (V, error) {
	ks := key.CacheKey()

	if e, ok := c.lookup(ks); ok {
		metrics.ObserveCacheLookup("hit")
		return e.value, e.err
	}
	metrics.ObserveCacheLookup("miss")

	v, err, _ := c.group.Do(ks, func() (any, error) {
		if e, ok := c.lookup(ks); ok {
			return e, nil
		}
		value, err := compute(ctx)
		e := entry[V]{value: value, err: err, expiresAt: c.clock.Now().Add(c.ttl)}
		c.store(ks, e)
		return e, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	e := v.(entry[V])
	return e.value, e.err
}

// Len reports the number of live entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) lookup(ks string) (entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ks]
	if !ok || c.clock.Now().After(e.expiresAt) {
		return entry[V]{}, false
	}
	return e, true
}

func (c *Cache[K, V]) store(ks string, e entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[ks]; !exists {
		c.order = append(c.order, ks)
	}
	c.entries[ks] = e
	for c.capacity > 0 && len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

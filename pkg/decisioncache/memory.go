package decisioncache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Memory is an in-process LRU cache with per-entry TTL and single-flight
// miss coalescing. Concurrent GetOrLoad calls for the same missing key share
// one load instead of issuing N redundant store queries.
//
// Expiry is evaluated against an injected clock so staleness bounds are
// testable without sleeping; the LRU bound protects against unbounded
// growth across many (principal, org) pairs.
type Memory[V any] struct {
	lru     *lru.Cache[string, entry[V]]
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics
	name    string

	// mu guards gens and purges. Remove and Purge bump the generation so a
	// load already in flight when its key was invalidated cannot store a
	// stale result afterwards.
	mu     sync.Mutex
	gens   map[string]uint64
	purges uint64
}

// MemoryOption configures a Memory cache.
type MemoryOption[V any] func(*Memory[V])

// WithClock overrides the time source, for deterministic TTL tests.
func WithClock[V any](now func() time.Time) MemoryOption[V] {
	return func(m *Memory[V]) { m.now = now }
}

// WithMetrics attaches hit/miss/eviction counters under the given cache name.
func WithMetrics[V any](metrics *Metrics, name string) MemoryOption[V] {
	return func(m *Memory[V]) {
		m.metrics = metrics
		m.name = name
	}
}

// NewMemory creates a memory cache holding up to maxEntries values for ttl.
// Zero values fall back to DefaultMaxEntries and DefaultTTL.
func NewMemory[V any](maxEntries int, ttl time.Duration, opts ...MemoryOption[V]) (*Memory[V], error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Memory[V]{
		ttl:  ttl,
		now:  time.Now,
		gens: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}

	cache, err := lru.NewWithEvict[string, entry[V]](maxEntries, func(string, entry[V]) {
		if m.metrics != nil {
			m.metrics.evictions.WithLabelValues(m.name).Inc()
		}
	})
	if err != nil {
		return nil, err
	}
	m.lru = cache
	return m, nil
}

// GetOrLoad returns the cached value for key, loading it through load on a
// miss. The boolean result reports a cache hit. A caller whose context is
// cancelled stops waiting, but the shared load keeps running so other
// waiters (and the cache) still receive the result.
func (m *Memory[V]) GetOrLoad(ctx context.Context, key string, load LoadFunc[V]) (V, bool, error) {
	if e, ok := m.lru.Get(key); ok && m.now().Before(e.expires) {
		if m.metrics != nil {
			m.metrics.hits.WithLabelValues(m.name).Inc()
		}
		return e.value, true, nil
	}
	if m.metrics != nil {
		m.metrics.misses.WithLabelValues(m.name).Inc()
	}

	m.mu.Lock()
	keyGen, purgeGen := m.gens[key], m.purges
	m.mu.Unlock()

	// The load runs on a context detached from this caller's cancellation:
	// the single-flight result is shared, and one cancelled waiter must not
	// abort the lookup for everyone else.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		// Store only if the key was not invalidated while the load ran.
		m.mu.Lock()
		if m.gens[key] == keyGen && m.purges == purgeGen {
			m.lru.Add(key, entry[V]{value: v, expires: m.now().Add(m.ttl)})
		}
		m.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	}
}

// Remove drops the given keys. Loads in flight for a removed key are
// detached: waiters that already joined keep their result, but it is not
// stored, and later callers start a fresh load.
func (m *Memory[V]) Remove(keys ...string) {
	for _, k := range keys {
		m.group.Forget(k)
	}
	m.mu.Lock()
	for _, k := range keys {
		m.gens[k]++
	}
	m.mu.Unlock()
	for _, k := range keys {
		m.lru.Remove(k)
	}
}

// Purge drops every entry. Loads in flight keep their waiters but do not
// store results.
func (m *Memory[V]) Purge() {
	for _, k := range m.lru.Keys() {
		m.group.Forget(k)
	}
	m.mu.Lock()
	m.purges++
	m.mu.Unlock()
	m.lru.Purge()
}

// Len returns the number of resident entries, including any that have
// passed their TTL but not yet been evicted.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}

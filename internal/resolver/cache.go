package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/region-health-etl/internal/observability"
)

// RegionResolver maps a coordinate to a region code.
type RegionResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (string, bool)
}

// Store persists resolved lookups across runs.
type Store interface {
	Lookup(ctx context.Context, key string) (code string, found bool, err error)
	Save(ctx context.Context, key, code string) error
}

// CachedResolver wraps a RegionResolver with an in-memory LRU cache and an
// optional persistent store. Cache hits never touch the inner resolver, so
// they do not consume a request slot.
type CachedResolver struct {
	inner   RegionResolver
	cache   *lruCache
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedResolver creates a cache decorator around inner. store may be nil.
func NewCachedResolver(inner RegionResolver, maxEntries int, store Store, logger *slog.Logger, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, lat, lon float64) (string, bool) {
	key := cacheKey(lat, lon)
	if code, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return code, true
	}

	if c.store != nil {
		code, found, err := c.store.Lookup(ctx, key)
		if err != nil {
			c.logger.Warn("lookup store read failed", "key", key, "error", err)
		} else if found {
			c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			c.cache.put(key, code)
			return code, true
		}
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	code, ok := c.inner.Resolve(ctx, lat, lon)
	if !ok {
		// Unresolved points are not cached so a later run can retry them.
		return "", false
	}
	c.cache.put(key, code)
	if c.store != nil {
		if err := c.store.Save(ctx, key, code); err != nil {
			c.logger.Warn("lookup store write failed", "key", key, "error", err)
		}
	}
	return code, true
}

// cacheKey rounds to 6 decimal places (~0.1 m), well below postcode resolution.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

// lruCache is a simple thread-safe LRU cache of region codes.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value string
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

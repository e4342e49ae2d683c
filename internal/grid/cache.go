package grid

import (
	"context"
	"sync"
	"time"

	"github.com/icewatch/seaice-stats/internal/nasateam"
)

// CachedAccessor wraps an Accessor with an in-memory LRU cache. Grids are
// immutable once loaded, so cached grids may be shared read-only across
// concurrent hemisphere workers.
type CachedAccessor struct {
	inner Accessor
	cache *lruCache
}

// NewCachedAccessor creates a read-through cache decorator around an
// accessor. Not-found days are not cached so a later data delivery is picked
// up on retry.
func NewCachedAccessor(inner Accessor, maxEntries int) *CachedAccessor {
	return &CachedAccessor{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedAccessor) GridForDate(ctx context.Context, hemi nasateam.Hemisphere, date time.Time) (*ConcentrationGrid, error) {
	key := indexKey(hemi, date)
	if g, ok := c.cache.get(key); ok {
		return g, nil
	}
	g, err := c.inner.GridForDate(ctx, hemi, date)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, g)
	return g, nil
}

// Invalidate drops every cached grid. Callers invoke this after rescanning
// search paths so replaced near-real-time files are re-read.
func (c *CachedAccessor) Invalidate() {
	c.cache.clear()
}

// lruCache is a simple thread-safe LRU cache for concentration grids.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *ConcentrationGrid
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*ConcentrationGrid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *ConcentrationGrid) {
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

func (c *lruCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.head = nil
	c.tail = nil
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

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/geoviz"
)

// DefaultCapacity is the tile capacity used when CacheConfig leaves
// Capacity zero.
const DefaultCapacity = 64

// CacheConfig configures a Cache. The zero value holds
// DefaultCapacity tiles.
type CacheConfig struct {
	// Capacity is the maximum number of cached tiles.
	Capacity int

	// OnEvict runs for every dataframe leaving the cache, before its
	// key can be reused. The renderer eviction hook deregisters the
	// dataframe and frees it.
	OnEvict func(Key, *geoviz.Dataframe)
}

// CacheStats counts cache activity. Counters are atomic so Stats can
// be read while fetch callbacks insert tiles.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Len       int
}

// cacheEntry is one cached tile threaded on the intrusive LRU list.
// Head is most recently used.
type cacheEntry struct {
	key        Key
	df         *geoviz.Dataframe
	prev, next *cacheEntry
}

// Cache is an LRU cache of decoded tiles. Eviction runs the OnEvict
// hook exactly once per dataframe, outside the cache lock, so the
// hook may call back into the renderer freely.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*cacheEntry
	head    *cacheEntry
	tail    *cacheEntry
	cap     int
	onEvict func(Key, *geoviz.Dataframe)

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCache returns an empty cache.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("tile: invalid cache capacity %d", cfg.Capacity)
	}
	return &Cache{
		entries: make(map[Key]*cacheEntry),
		cap:     cfg.Capacity,
		onEvict: cfg.OnEvict,
	}, nil
}

// Get returns the cached dataframe for a key, marking it most
// recently used.
func (c *Cache) Get(key Key) (*geoviz.Dataframe, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.moveToFront(e)
	df := e.df
	c.mu.Unlock()
	c.hits.Add(1)
	return df, true
}

// Set inserts a tile, evicting the least recently used tiles over
// capacity. Replacing a key evicts the previous dataframe first.
func (c *Cache) Set(key Key, df *geoviz.Dataframe) {
	var evicted []*cacheEntry

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.df != df {
			evicted = append(evicted, &cacheEntry{key: key, df: e.df})
			e.df = df
		}
		c.moveToFront(e)
	} else {
		e := &cacheEntry{key: key, df: df}
		c.entries[key] = e
		c.pushFront(e)
		for len(c.entries) > c.cap {
			old := c.tail
			c.unlink(old)
			delete(c.entries, old.key)
			evicted = append(evicted, old)
		}
	}
	c.mu.Unlock()

	c.dispose(evicted)
}

// Remove evicts one key, running the OnEvict hook if it was present.
func (c *Cache) Remove(key Key) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.unlink(e)
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.dispose([]*cacheEntry{e})
	return true
}

// Clear evicts everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	evicted := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		evicted = append(evicted, e)
	}
	c.entries = make(map[Key]*cacheEntry)
	c.head, c.tail = nil, nil
	c.mu.Unlock()
	c.dispose(evicted)
}

// Len returns the number of cached tiles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.Len(),
	}
}

// dispose runs the eviction hook outside the lock.
func (c *Cache) dispose(evicted []*cacheEntry) {
	for _, e := range evicted {
		c.evictions.Add(1)
		if c.onEvict != nil {
			c.onEvict(e.key, e.df)
		}
	}
}

func (c *Cache) pushFront(e *cacheEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) moveToFront(e *cacheEntry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache) unlink(e *cacheEntry) {
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
	e.prev, e.next = nil, nil
}

// EvictToRenderer returns an OnEvict hook implementing the standard
// lifetime contract: deregister the dataframe from the renderer, then
// free it exactly once. Removal from the renderer happens before the
// GPU free, so no frame can draw released buffers.
func EvictToRenderer(r *geoviz.Renderer) func(Key, *geoviz.Dataframe) {
	return func(_ Key, df *geoviz.Dataframe) {
		if df == nil {
			return
		}
		r.RemoveDataframe(df)
		df.Free()
	}
}

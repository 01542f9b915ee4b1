// Package cache provides LRU caching for decoded bundles.
package cache

import (
	"container/list"
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// DefaultBundles is the number of bundles NewBundles keeps when given a
// non-positive size.
const DefaultBundles = 16

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU is a thread-safe least-recently-used cache. A MaxSize of 0 means
// unlimited.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	maxSize   int
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats

	// OnEvict is called with the lock held when an entry is evicted to
	// make room.
	OnEvict func(key K, value V)
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[K comparable, V any](maxSize int) *LRU[K, V] {
	return &LRU[K, V]{
		maxSize:   max(maxSize, 0),
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return ent.Value.(*entry[K, V]).value, true
}

// Put stores a value, evicting the least recently used entry when full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*entry[K, V]).value = value
		return
	}
	c.entries[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value})

	if c.maxSize > 0 && c.evictList.Len() > c.maxSize {
		oldest := c.evictList.Back()
		e := c.remove(oldest)
		c.stats.Evictions++
		if c.OnEvict != nil {
			c.OnEvict(e.key, e.value)
		}
	}
}

// Remove drops key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.entries[key]; ok {
		c.remove(ent)
	}
}

// Clear removes all entries. Statistics are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns a snapshot of the statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.maxSize
	return s
}

func (c *LRU[K, V]) remove(ent *list.Element) *entry[K, V] {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)
	return e
}

// Bundles caches decoded bundles by content digest. Bundles are copied on
// the way in and out, so callers may modify what they get.
type Bundles struct {
	lru *LRU[string, *bundle.Bundle]
}

// NewBundles creates a bundle cache holding at most size bundles.
func NewBundles(size int) *Bundles {
	if size <= 0 {
		size = DefaultBundles
	}
	return &Bundles{lru: NewLRU[string, *bundle.Bundle](size)}
}

// Get returns a copy of the bundle cached under digest.
func (c *Bundles) Get(digest string) (*bundle.Bundle, bool) {
	b, ok := c.lru.Get(digest)
	if !ok {
		return nil, false
	}
	return deepcopy.Copy(b).(*bundle.Bundle), true
}

// Put caches a copy of b under digest.
func (c *Bundles) Put(digest string, b *bundle.Bundle) {
	c.lru.Put(digest, deepcopy.Copy(b).(*bundle.Bundle))
}

// Len returns the number of cached bundles.
func (c *Bundles) Len() int {
	return c.lru.Len()
}

// Stats returns cache statistics.
func (c *Bundles) Stats() Stats {
	return c.lru.Stats()
}

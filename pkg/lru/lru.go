// Package lru provides a generic bounded least-recently-used cache.
//
// The cache is generic over key and value types; connection.Manager uses it
// to bound the set of live per-context engines.
//
// The cache performs no internal locking. Single-goroutine callers (or callers
// that confine a cache to one goroutine) use it directly; anything shared across
// goroutines must be wrapped with external mutual exclusion. See
// connection.Manager for the canonical wrapped use.
//
// Example:
//
//	cache := lru.New[string, int](100)
//	cache.Put("answer", 42)
//	if v, ok := cache.Get("answer"); ok {
//		fmt.Println(v)
//	}
package lru

import "container/list"

// DefaultMaxSize is the capacity used when New is given a non-positive size.
const DefaultMaxSize = 100

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a fixed-capacity key/value store with least-recently-used eviction.
//
// Accessing or inserting a key marks it most recently used. Inserting beyond
// capacity evicts the least-recently-touched entry first; the cache never holds
// more than MaxSize entries.
type Cache[K comparable, V any] struct {
	maxSize int
	order   *list.List // front = most recent, back = least recent
	items   map[K]*list.Element
}

// New creates a Cache with the given capacity. Non-positive maxSize falls back
// to DefaultMaxSize.
func New[K comparable, V any](maxSize int) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[K, V]{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[K]*list.Element),
	}
}

// MaxSize returns the cache capacity.
func (c *Cache[K, V]) MaxSize() int { return c.maxSize }

// Len returns the number of entries currently held.
func (c *Cache[K, V]) Len() int { return len(c.items) }

// Get returns the value for key and marks it most recently used.
// A missing key is a normal empty result, not an error.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Put inserts or replaces the value for key. Replacing an existing key resets
// its recency. If the cache is full and the key is new, the least-recently-used
// entry is evicted first.
func (c *Cache[K, V]) Put(key K, value V) {
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	} else if len(c.items) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[K, V]).key)
		}
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Oldest returns the least-recently-used entry without touching its recency.
// Callers that own disposable values use this to release the pending eviction
// victim before a Put at capacity.
func (c *Cache[K, V]) Oldest() (K, V, bool) {
	elem := c.order.Back()
	if elem == nil {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}
	e := elem.Value.(*entry[K, V])
	return e.key, e.value, true
}

// ForEach visits every entry from most to least recently used without
// changing recency. fn must not mutate the cache.
func (c *Cache[K, V]) ForEach(fn func(key K, value V)) {
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[K, V])
		fn(e.key, e.value)
	}
}

// Clear removes entries from the cache. With a nil predicate every entry is
// removed. With a predicate, exactly the entries for which it returns true are
// removed; the relative recency order of surviving entries is untouched.
func (c *Cache[K, V]) Clear(predicate func(key K, value V) bool) {
	if predicate == nil {
		c.order.Init()
		clear(c.items)
		return
	}

	var doomed []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[K, V])
		if predicate(e.key, e.value) {
			doomed = append(doomed, elem)
		}
	}
	for _, elem := range doomed {
		c.order.Remove(elem)
		delete(c.items, elem.Value.(*entry[K, V]).key)
	}
}

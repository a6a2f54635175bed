// Package lru provides a least-recently-used cache bounded by total entry cost.
package lru

import (
	"container/list"
	"sync"
)

// CostFunc reports the cost of one entry against the cache budget.
type CostFunc[K comparable, V any] func(key K, value V) int64

type entry[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// Cache is a thread-safe LRU cache. After every insert it evicts the least
// recently used entries until the summed cost is within maxCost. An entry
// that alone exceeds maxCost is evicted right away.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	maxCost int64
	cost    int64
	costFn  CostFunc[K, V]
	ll      *list.List
	items   map[K]*list.Element
	onEvict func(key K, value V)
}

// New creates a cache with the given budget and cost function.
func New[K comparable, V any](maxCost int64, costFn CostFunc[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		maxCost: maxCost,
		costFn:  costFn,
		ll:      list.New(),
		items:   make(map[K]*list.Element),
	}
}

// OnEvict registers a callback invoked (under the cache lock) for every
// entry removed by budget enforcement.
func (c *Cache[K, V]) OnEvict(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put inserts or replaces key, then trims the cache to its budget.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := c.costFn(key, value)
	if cost < 0 {
		cost = 0
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		c.cost += cost - e.cost
		e.value = value
		e.cost = cost
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry[K, V]{key: key, value: value, cost: cost})
		c.items[key] = el
		c.cost += cost
	}
	c.trim()
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[K]*list.Element)
	c.cost = 0
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Cost returns the summed cost of all entries.
func (c *Cache[K, V]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

func (c *Cache[K, V]) trim() {
	for c.cost > c.maxCost {
		el := c.ll.Back()
		if el == nil {
			return
		}
		e := el.Value.(*entry[K, V])
		c.removeElement(el)
		if c.onEvict != nil {
			c.onEvict(e.key, e.value)
		}
	}
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	e := el.Value.(*entry[K, V])
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.cost -= e.cost
}

// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"sync"
)

// FIFOCache is a thread-safe, bounded cache that evicts the oldest inserted key
type FIFOCache[K comparable, V any] struct {
	lk       sync.RWMutex
	cache    map[K]V
	queue    []K
	capacity int
}

// NewFIFOCache creates a new FIFO cache with the given capacity.
// A non-positive capacity is treated as 1.
func NewFIFOCache[K comparable, V any](capacity int) *FIFOCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &FIFOCache[K, V]{
		cache:    make(map[K]V),
		queue:    make([]K, 0, capacity),
		capacity: capacity,
	}
}

// Get returns the cached value for key
func (c *FIFOCache[K, V]) Get(key K) (V, bool) {
	c.lk.RLock()
	defer c.lk.RUnlock()

	val, ok := c.cache[key]
	return val, ok
}

// Put stores val under key, evicting the oldest entry when full.
// Overwriting an existing key keeps its position in the queue.
func (c *FIFOCache[K, V]) Put(key K, val V) {
	c.lk.Lock()
	defer c.lk.Unlock()

	if _, exists := c.cache[key]; exists {
		c.cache[key] = val
		return
	}

	if len(c.queue) >= c.capacity {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.cache, oldest)
	}

	c.cache[key] = val
	c.queue = append(c.queue, key)
}

// Len returns the current number of items in the cache
func (c *FIFOCache[K, V]) Len() int {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return len(c.cache)
}

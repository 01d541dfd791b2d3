package cache

import (
	"sync"
)

// simpleCache is a thread-safe cache with no eviction policy. It stores
// entries until explicitly deleted or cleared, which is exactly the
// lifetime contract of a request-scoped loader cache: the scope owns the
// cache and discards it wholesale at request end.
type simpleCache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]V
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[K, V]
}

// NewSimple creates a cache with no eviction policy.
func NewSimple[K comparable, V any](opts ...Option[K, V]) (Cache[K, V], error) {
	options := applyOptions(opts...)

	var metrics *cacheMetrics
	if options.metricsReg != nil && options.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(options.metricsReg, options.metricsPrefix)
		if err != nil {
			return nil, err
		}
	}

	return &simpleCache[K, V]{
		items:   make(map[K]V),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: options.evictCallback,
	}, nil
}

// Get retrieves a value by key.
func (c *simpleCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	value, exists := c.items[key]
	c.mu.RUnlock()

	if exists {
		c.stats.Hit()
		if c.metrics != nil {
			c.metrics.recordHit()
		}
	} else {
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
	}

	return value, exists
}

// Set stores a value with the given key.
func (c *simpleCache[K, V]) Set(key K, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = value
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}

	return !exists, nil
}

// Delete removes an entry by key.
func (c *simpleCache[K, V]) Delete(key K) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	value, exists := c.items[key]
	if exists {
		delete(c.items, key)
		if c.evictFn != nil {
			defer c.evictFn(key, value)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.recordEviction()
			c.metrics.updateSize(size)
		}
	}

	return exists, nil
}

// Clear removes all entries from the cache.
func (c *simpleCache[K, V]) Clear() error {
	c.mu.Lock()
	if c.evictFn != nil {
		for key, value := range c.items {
			c.evictFn(key, value)
		}
	}
	c.items = make(map[K]V)
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}

	return nil
}

// Size returns the current number of entries in the cache.
func (c *simpleCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns a slice of all keys currently in the cache.
func (c *simpleCache[K, V]) Keys() []K {
	c.mu.RLock()
	keys := make([]K, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	c.mu.RUnlock()
	return keys
}

// Stats returns cache statistics.
func (c *simpleCache[K, V]) Stats() *Statistics {
	return c.stats
}

// Close shuts down the cache. The simple cache has no background
// goroutines, so this is a no-op.
func (c *simpleCache[K, V]) Close() error {
	return nil
}

package cache

import (
	"sync"
	"time"

	"github.com/c360/opscore/errors"
)

// ttlCache is a thread-safe cache whose entries expire after a fixed
// time-to-live. A background goroutine sweeps expired entries on the
// configured cleanup interval. Used for long-lived process caches such as
// the graph client's entity cache, where staleness is bounded by TTL
// rather than by request scope.
type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]*entry[V]
	ttl     time.Duration
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[K, V]

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewTTL creates a cache whose entries expire after ttl.
func NewTTL[K comparable, V any](ttl time.Duration, opts ...Option[K, V]) (Cache[K, V], error) {
	if ttl <= 0 {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "cache", "NewTTL", "ttl must be positive")
	}

	options := applyOptions(opts...)

	var metrics *cacheMetrics
	if options.metricsReg != nil && options.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(options.metricsReg, options.metricsPrefix)
		if err != nil {
			return nil, err
		}
	}

	c := &ttlCache[K, V]{
		items:   make(map[K]*entry[V]),
		ttl:     ttl,
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: options.evictCallback,
		stopCh:  make(chan struct{}),
	}

	go c.cleanupLoop(options.cleanupEvery)

	return c, nil
}

// Get retrieves a value by key. Expired entries count as misses and are
// removed lazily.
func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, exists := c.items[key]
	c.mu.RUnlock()

	if exists && e.expired(time.Now()) {
		c.removeExpired(key)
		exists = false
	}

	if exists {
		c.stats.Hit()
		if c.metrics != nil {
			c.metrics.recordHit()
		}
		return e.value, true
	}

	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
	var zero V
	return zero, false
}

// Set stores a value with the cache's TTL.
func (c *ttlCache[K, V]) Set(key K, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = &entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
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
func (c *ttlCache[K, V]) Delete(key K) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	e, exists := c.items[key]
	if exists {
		delete(c.items, key)
		if c.evictFn != nil {
			defer c.evictFn(key, e.value)
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
func (c *ttlCache[K, V]) Clear() error {
	c.mu.Lock()
	if c.evictFn != nil {
		for key, e := range c.items {
			c.evictFn(key, e.value)
		}
	}
	c.items = make(map[K]*entry[V])
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}

	return nil
}

// Size returns the current number of entries, including not-yet-swept
// expired ones.
func (c *ttlCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all non-expired keys.
func (c *ttlCache[K, V]) Keys() []K {
	now := time.Now()
	c.mu.RLock()
	keys := make([]K, 0, len(c.items))
	for key, e := range c.items {
		if !e.expired(now) {
			keys = append(keys, key)
		}
	}
	c.mu.RUnlock()
	return keys
}

// Stats returns cache statistics.
func (c *ttlCache[K, V]) Stats() *Statistics {
	return c.stats
}

// Close stops the cleanup goroutine.
func (c *ttlCache[K, V]) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	return nil
}

// removeExpired deletes an entry found expired during Get, re-checking
// expiry under the write lock.
func (c *ttlCache[K, V]) removeExpired(key K) {
	c.mu.Lock()
	e, exists := c.items[key]
	if exists && e.expired(time.Now()) {
		delete(c.items, key)
		if c.evictFn != nil {
			defer c.evictFn(key, e.value)
		}
		c.stats.Eviction()
		c.stats.UpdateSize(int64(len(c.items)))
		if c.metrics != nil {
			c.metrics.recordEviction()
			c.metrics.updateSize(len(c.items))
		}
	}
	c.mu.Unlock()
}

// cleanupLoop periodically sweeps expired entries until Close.
func (c *ttlCache[K, V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes all expired entries.
func (c *ttlCache[K, V]) sweep() {
	now := time.Now()
	type evicted struct {
		key   K
		value V
	}
	var removed []evicted

	c.mu.Lock()
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			if c.evictFn != nil {
				removed = append(removed, evicted{key, e.value})
			}
			c.stats.Eviction()
			if c.metrics != nil {
				c.metrics.recordEviction()
			}
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.updateSize(size)
	}

	for _, ev := range removed {
		c.evictFn(ev.key, ev.value)
	}
}

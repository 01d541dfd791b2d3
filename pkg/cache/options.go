package cache

import (
	"time"

	"github.com/c360/opscore/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[K comparable, V any] func(*cacheOptions[K, V])

// cacheOptions holds internal configuration for cache instances.
// Stats are always collected; metrics export is opt-in.
type cacheOptions[K comparable, V any] struct {
	metricsReg    metric.Registrar
	metricsPrefix string
	evictCallback EvictCallback[K, V]
	cleanupEvery  time.Duration
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// If registry is nil or prefix is empty, the option is ignored.
func WithMetrics[K comparable, V any](registry metric.Registrar, prefix string) Option[K, V] {
	return func(opts *cacheOptions[K, V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked when entries are removed,
// whether by Delete, Clear, or TTL expiry.
func WithEvictionCallback[K comparable, V any](callback EvictCallback[K, V]) Option[K, V] {
	return func(opts *cacheOptions[K, V]) {
		opts.evictCallback = callback
	}
}

// WithCleanupInterval sets how often the TTL cache sweeps expired entries.
// Ignored by the simple cache and for intervals <= 0.
func WithCleanupInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(opts *cacheOptions[K, V]) {
		if interval > 0 {
			opts.cleanupEvery = interval
		}
	}
}

// applyOptions applies functional options to create final configuration.
func applyOptions[K comparable, V any](options ...Option[K, V]) *cacheOptions[K, V] {
	opts := &cacheOptions[K, V]{
		cleanupEvery: time.Minute,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}

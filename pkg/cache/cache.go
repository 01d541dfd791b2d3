// Package cache provides generic, thread-safe caches keyed by any comparable
// type. Two implementations are offered: a simple cache with no eviction
// (the batch loader's request-scoped memoization table) and a TTL cache with
// background cleanup (the graph client's entity cache). Statistics are always
// collected; Prometheus export is optional via functional options.
package cache

import (
	"time"

	"github.com/c360/opscore/errors"
)

// Cache represents a generic cache interface that all implementations must
// satisfy. The cache is parameterized by key type K and value type V.
type Cache[K comparable, V any] interface {
	// Get retrieves a value by key. Returns the value and true if found,
	// zero value and false otherwise.
	Get(key K) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry
	// was created, false if an existing entry was updated.
	Set(key K, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key K) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns a slice of all keys currently in the cache.
	Keys() []K

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close shuts down the cache and releases any resources.
	Close() error
}

// EvictCallback is called when an entry is removed from the cache.
type EvictCallback[K comparable, V any] func(key K, value V)

// entry holds a cached value with expiry metadata for the TTL cache.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// validateKey rejects zero-value keys. Loader keys are opaque identifiers;
// an empty identifier is always caller error.
func validateKey[K comparable](key K) error {
	var zero K
	if key == zero {
		return errors.WrapValidation(errors.ErrEmptyKey, "cache", "validateKey", "key check")
	}
	return nil
}

// Package invalidation provides a registry that routes cache eviction
// signals from write paths to the loader caches affected by a mutation.
// Write handlers call Invalidate synchronously after a successful write and
// before returning success, so no subsequent read in the same or a later
// request can observe stale data.
//
// The bus performs no fan-out inference: callers name every cache a given
// entity change affects (e.g. both "alert-by-id" and "alerts-by-case" when
// an alert changes).
package invalidation

import (
	"log/slog"
	"sync"

	"github.com/c360/opscore/errors"
)

// Handle is the eviction surface a cache exposes to the bus. Loader caches
// adapt themselves to this interface when registering.
type Handle interface {
	// Evict removes one key. Returns true if the key was present.
	Evict(key string) bool

	// EvictAll removes every entry.
	EvictAll()
}

// HandleFuncs adapts plain functions to the Handle interface.
type HandleFuncs struct {
	EvictFunc    func(key string) bool
	EvictAllFunc func()
}

// Evict implements Handle
func (h HandleFuncs) Evict(key string) bool {
	if h.EvictFunc == nil {
		return false
	}
	return h.EvictFunc(key)
}

// EvictAll implements Handle
func (h HandleFuncs) EvictAll() {
	if h.EvictAllFunc != nil {
		h.EvictAllFunc()
	}
}

// Bus routes invalidation signals to registered caches by name. A bus is an
// explicit dependency, constructed alongside the caches it serves, never a
// package-level singleton.
type Bus struct {
	mu      sync.RWMutex
	handles map[string]Handle

	logger  *slog.Logger
	metrics *busMetrics
}

// New creates an empty bus.
func New(opts ...Option) (*Bus, error) {
	options := applyOptions(opts...)

	var metrics *busMetrics
	if options.metricsReg != nil {
		var err error
		metrics, err = newBusMetrics(options.metricsReg)
		if err != nil {
			return nil, errors.Wrap(err, "invalidation", "New", "metrics registration")
		}
	}

	return &Bus{
		handles: make(map[string]Handle),
		logger:  options.logger,
		metrics: metrics,
	}, nil
}

// Register attaches a cache handle under name. Names must be unique within
// one bus; registering a duplicate is a caller bug and is rejected.
func (b *Bus) Register(name string, handle Handle) error {
	if name == "" {
		return errors.WrapValidation(errors.ErrEmptyKey, "invalidation", "Register", "cache name check")
	}
	if handle == nil {
		return errors.WrapValidation(errors.ErrInvalidConfig, "invalidation", "Register", "nil handle check")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handles[name]; exists {
		return errors.WrapValidation(errors.ErrInvalidConfig, "invalidation", "Register", "duplicate cache name "+name)
	}

	b.handles[name] = handle
	return nil
}

// Deregister detaches the named cache. Returns true if it was registered.
func (b *Bus) Deregister(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handles[name]; !exists {
		return false
	}
	delete(b.handles, name)
	return true
}

// Invalidate synchronously evicts key from the named cache. The eviction
// completes before Invalidate returns, which is what gives write paths
// their happens-before guarantee against subsequent reads.
func (b *Bus) Invalidate(name, key string) error {
	if key == "" {
		return errors.WrapValidation(errors.ErrEmptyKey, "invalidation", "Invalidate", "key check")
	}

	handle, err := b.lookup(name, "Invalidate")
	if err != nil {
		return err
	}

	evicted := handle.Evict(key)
	if b.metrics != nil {
		b.metrics.recordEvict(name)
	}
	if b.logger != nil {
		b.logger.Debug("cache invalidated", "cache", name, "key", key, "evicted", evicted)
	}
	return nil
}

// InvalidateAll synchronously evicts every entry from the named cache.
func (b *Bus) InvalidateAll(name string) error {
	handle, err := b.lookup(name, "InvalidateAll")
	if err != nil {
		return err
	}

	handle.EvictAll()
	if b.metrics != nil {
		b.metrics.recordEvictAll(name)
	}
	if b.logger != nil {
		b.logger.Debug("cache fully invalidated", "cache", name)
	}
	return nil
}

// Names returns the registered cache names.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.handles))
	for name := range b.handles {
		names = append(names, name)
	}
	return names
}

func (b *Bus) lookup(name, op string) (Handle, error) {
	b.mu.RLock()
	handle, exists := b.handles[name]
	b.mu.RUnlock()

	if !exists {
		return nil, errors.WrapValidation(errors.ErrCacheNotRegistered, "invalidation", op, "lookup of cache "+name)
	}
	return handle, nil
}

package loader

import (
	"github.com/c360/opscore/invalidation"
)

// clearer is the eviction surface shared by Loader and GroupLoader.
type clearer[K comparable] interface {
	Clear(key K)
	ClearAll()
}

type busHandle[K comparable] struct {
	target clearer[K]
	parse  func(string) (K, error)
}

// Evict implements invalidation.Handle. A key that fails to parse matches
// nothing, so nothing is evicted.
func (h busHandle[K]) Evict(key string) bool {
	k, err := h.parse(key)
	if err != nil {
		return false
	}
	h.target.Clear(k)
	return true
}

// EvictAll implements invalidation.Handle
func (h busHandle[K]) EvictAll() {
	h.target.ClearAll()
}

// Handle adapts a loader (or group loader) to the invalidation bus. The
// parse function converts the bus's string key into the loader's key type.
func Handle[K comparable](target clearer[K], parse func(string) (K, error)) invalidation.Handle {
	return busHandle[K]{target: target, parse: parse}
}

// StringHandle adapts a string-keyed loader to the invalidation bus.
func StringHandle(target clearer[string]) invalidation.Handle {
	return Handle(target, func(key string) (string, error) { return key, nil })
}

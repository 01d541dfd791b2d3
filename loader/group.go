package loader

import (
	"context"
)

// GroupBatchFunc fetches the child collections for a set of distinct parent
// keys in one downstream call. Keys absent from the returned map have no
// children; that is not an error.
type GroupBatchFunc[K comparable, E any] func(ctx context.Context, keys []K) (map[K][]E, error)

// GroupLoader batches one-to-many lookups, e.g. "alerts by case id". It has
// the same batching and memoization behavior as Loader, but a key with no
// children resolves to an empty slice rather than a not-found marker.
type GroupLoader[K comparable, E any] struct {
	inner *Loader[K, []E]
}

// NewGroup creates a group loader backed by fetch.
func NewGroup[K comparable, E any](fetch GroupBatchFunc[K, E], config Config, opts ...Option[K, []E]) (*GroupLoader[K, E], error) {
	var batchFn BatchFunc[K, []E]
	if fetch != nil {
		batchFn = BatchFunc[K, []E](fetch)
	}

	inner, err := New(batchFn, config, opts...)
	if err != nil {
		return nil, err
	}
	return &GroupLoader[K, E]{inner: inner}, nil
}

// Load returns the children of key. A parent with no children yields an
// empty slice, never nil paired with an error.
func (g *GroupLoader[K, E]) Load(ctx context.Context, key K) ([]E, error) {
	result, err := g.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !result.Found || result.Value == nil {
		return []E{}, nil
	}
	return result.Value, nil
}

// LoadMany returns the children for all keys, in order. Per-entry failures
// are reported in Result.Err.
func (g *GroupLoader[K, E]) LoadMany(ctx context.Context, keys []K) []Result[[]E] {
	results := g.inner.LoadMany(ctx, keys)
	for i := range results {
		if results[i].Err == nil && results[i].Value == nil {
			results[i].Value = []E{}
			results[i].Found = true
		}
	}
	return results
}

// Clear evicts key from the scope cache.
func (g *GroupLoader[K, E]) Clear(key K) { g.inner.Clear(key) }

// ClearAll evicts every cached entry.
func (g *GroupLoader[K, E]) ClearAll() { g.inner.ClearAll() }

// Close releases the scope cache.
func (g *GroupLoader[K, E]) Close() error { return g.inner.Close() }

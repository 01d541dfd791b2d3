// Package loader implements request-scoped batching and caching of entity
// lookups. Many individual Load calls issued within one batch window are
// coalesced into a single downstream fetch per distinct key set, and results
// are memoized for the lifetime of the owning request scope so a key is
// fetched at most once per scope.
//
// The loader never retries and never shares caches across scopes; retry
// policy and scope lifetime belong to callers.
package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/pkg/cache"
)

// BatchFunc fetches values for a set of distinct keys in one downstream
// call. Keys absent from the returned map are treated as not found. A
// returned error fails every key in the batch uniformly, except when the
// error is a *PartialError, which fails only the keys it names.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Result is the outcome of a single key lookup. Found is false for keys
// the downstream store has no entity for; that is not an error.
type Result[V any] struct {
	Value V
	Found bool
	Err   error
}

// Config controls batching behavior.
type Config struct {
	// MaxBatchSize caps how many keys go into a single downstream call.
	// Larger accumulations are split into multiple calls.
	MaxBatchSize int `json:"max_batch_size"`

	// Window is how long the loader accumulates keys before dispatching.
	// The first Load after a drain opens the window; the batch dispatches
	// when it elapses or MaxBatchSize is reached, whichever first.
	Window time.Duration `json:"window"`

	// Timeout bounds each downstream call. Affected callers receive a
	// timeout error rather than hanging.
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 100,
		Window:       2 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// thunk is the pending-or-resolved state for one key. All callers that
// requested the key before resolution share one thunk, which is what makes
// concurrent dedup work: the check-and-set of the thunk under the loader
// mutex guarantees at most one downstream fetch per key per scope.
type thunk[V any] struct {
	done  chan struct{}
	value V
	found bool
	err   error
}

func newThunk[V any]() *thunk[V] {
	return &thunk[V]{done: make(chan struct{})}
}

// resolve publishes the outcome and wakes all waiters. Must be called at
// most once.
func (t *thunk[V]) resolve(value V, found bool, err error) {
	t.value = value
	t.found = found
	t.err = err
	close(t.done)
}

// pending pairs a batched key with the thunk its dispatch must resolve.
// Dispatch resolves exactly these thunks; a key cleared and re-requested
// mid-flight gets a fresh thunk owned by a later batch.
type pending[K comparable, V any] struct {
	key K
	t   *thunk[V]
}

// Loader batches and caches lookups for one request scope.
type Loader[K comparable, V any] struct {
	fetch  BatchFunc[K, V]
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	cache    cache.Cache[K, *thunk[V]]
	batch    []pending[K, V]
	timerSet bool

	metrics *loaderMetrics
}

// New creates a loader backed by fetch. One loader serves one request
// scope; never share a loader across unrelated requests.
func New[K comparable, V any](fetch BatchFunc[K, V], config Config, opts ...Option[K, V]) (*Loader[K, V], error) {
	if fetch == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "loader", "New", "fetch function is required")
	}

	options := applyOptions(opts...)

	memo, err := cache.NewSimple[K, *thunk[V]](options.cacheOpts()...)
	if err != nil {
		return nil, errors.Wrap(err, "loader", "New", "cache creation")
	}

	var metrics *loaderMetrics
	if options.metricsReg != nil && options.metricsPrefix != "" {
		metrics, err = newLoaderMetrics(options.metricsReg, options.metricsPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "loader", "New", "metrics registration")
		}
	}

	return &Loader[K, V]{
		fetch:   fetch,
		config:  config.withDefaults(),
		logger:  options.logger,
		cache:   memo,
		metrics: metrics,
	}, nil
}

// Load requests the value for key. Calls issued within the same batch
// window share one downstream fetch; repeated calls for a resolved key are
// served from the scope cache without a new dispatch. A missing entity is
// reported as Found=false, not as an error.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (Result[V], error) {
	t, err := l.enqueue(key)
	if err != nil {
		return Result[V]{Err: err}, err
	}
	return l.wait(ctx, t)
}

// LoadMany requests values for all keys. The result slice always has the
// same length and order as keys; duplicate keys resolve to the same value.
// Per-entry errors are reported in Result.Err so one bad key cannot
// reorder or drop siblings.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) []Result[V] {
	results := make([]Result[V], len(keys))
	thunks := make([]*thunk[V], len(keys))

	// Enqueue everything first so all keys land in the same batch window.
	for i, key := range keys {
		t, err := l.enqueue(key)
		if err != nil {
			results[i] = Result[V]{Err: err}
			continue
		}
		thunks[i] = t
	}

	for i, t := range thunks {
		if t == nil {
			continue
		}
		results[i], _ = l.wait(ctx, t)
	}

	return results
}

// Clear evicts key from the scope cache. The next Load for it triggers a
// fresh downstream dispatch. Callers already waiting on an in-flight fetch
// for the key still receive its outcome.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	_, _ = l.cache.Delete(key)
	l.mu.Unlock()
}

// ClearAll evicts every cached entry.
func (l *Loader[K, V]) ClearAll() {
	l.mu.Lock()
	_ = l.cache.Clear()
	l.mu.Unlock()
}

// CacheStats exposes the scope cache statistics.
func (l *Loader[K, V]) CacheStats() *cache.Statistics {
	return l.cache.Stats()
}

// Close releases the scope cache. Called by the owning scope at request end.
func (l *Loader[K, V]) Close() error {
	return l.cache.Close()
}

// enqueue returns the thunk for key, creating it and scheduling it into the
// current batch window if the key is not already pending or resolved.
func (l *Loader[K, V]) enqueue(key K) (*thunk[V], error) {
	var zero K
	if key == zero {
		return nil, errors.WrapValidation(errors.ErrEmptyKey, "loader", "Load", "key check")
	}

	l.mu.Lock()

	if t, ok := l.cache.Get(key); ok {
		l.mu.Unlock()
		return t, nil
	}

	t := newThunk[V]()
	if _, err := l.cache.Set(key, t); err != nil {
		l.mu.Unlock()
		return nil, err
	}

	l.batch = append(l.batch, pending[K, V]{key: key, t: t})

	// Size trigger: cut and dispatch a full batch immediately.
	if len(l.batch) >= l.config.MaxBatchSize {
		items := l.batch
		l.batch = nil
		l.mu.Unlock()
		go l.dispatch(items)
		return t, nil
	}

	// Window trigger: the first key after a drain arms the timer.
	if !l.timerSet {
		l.timerSet = true
		time.AfterFunc(l.config.Window, l.onWindowElapsed)
	}

	l.mu.Unlock()
	return t, nil
}

// onWindowElapsed dispatches whatever accumulated during the window.
func (l *Loader[K, V]) onWindowElapsed() {
	l.mu.Lock()
	l.timerSet = false
	items := l.batch
	l.batch = nil
	l.mu.Unlock()

	if len(items) > 0 {
		l.dispatch(items)
	}
}

// dispatch runs the downstream fetch, splitting into chunks of at most
// MaxBatchSize, and resolves every thunk exactly once.
func (l *Loader[K, V]) dispatch(items []pending[K, V]) {
	for len(items) > 0 {
		n := len(items)
		if n > l.config.MaxBatchSize {
			n = l.config.MaxBatchSize
		}
		l.dispatchChunk(items[:n])
		items = items[n:]
	}
}

func (l *Loader[K, V]) dispatchChunk(items []pending[K, V]) {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.Timeout)
	defer cancel()

	if l.metrics != nil {
		l.metrics.recordDispatch(len(items))
	}

	keys := make([]K, len(items))
	for i, item := range items {
		keys[i] = item.key
	}

	values, err := l.fetch(ctx, keys)
	if err != nil {
		l.resolveError(items, err)
		return
	}

	for _, item := range items {
		value, found := values[item.key]
		item.t.resolve(value, found, nil)
	}
}

// resolveError fails pending thunks after a fetch error. A *PartialError
// fails only the keys it names; everything else fails the whole chunk
// uniformly.
func (l *Loader[K, V]) resolveError(items []pending[K, V], err error) {
	var partial *PartialError[K, V]
	if asPartial(err, &partial) {
		for _, item := range items {
			if keyErr, failed := partial.Failed[item.key]; failed {
				var zero V
				item.t.resolve(zero, false, l.classify(keyErr))
				l.evictThunk(item.key, item.t)
				continue
			}
			value, found := partial.Values[item.key]
			item.t.resolve(value, found, nil)
		}
		return
	}

	classified := l.classify(err)
	if l.logger != nil {
		l.logger.Warn("batch fetch failed", "keys", len(items), "error", err)
	}
	if l.metrics != nil {
		l.metrics.recordFailure()
	}

	for _, item := range items {
		var zero V
		item.t.resolve(zero, false, classified)
		// Failed keys are not memoized; the caller decides whether to
		// retry with a fresh Load.
		l.evictThunk(item.key, item.t)
	}
}

// classify maps downstream errors onto the timeout/upstream taxonomy.
func (l *Loader[K, V]) classify(err error) error {
	if errors.IsTimeout(err) {
		return errors.WrapTimeout(err, "loader", "dispatch", "batch fetch")
	}
	return errors.WrapUpstream(err, "loader", "dispatch", "batch fetch")
}

// evictThunk removes key from the cache only if it still maps to t. A key
// cleared and re-requested mid-flight keeps its newer entry.
func (l *Loader[K, V]) evictThunk(key K, t *thunk[V]) {
	l.mu.Lock()
	if cur, ok := l.cache.Get(key); ok && cur == t {
		_, _ = l.cache.Delete(key)
	}
	l.mu.Unlock()
}

// wait blocks until the thunk resolves or the caller's context expires.
func (l *Loader[K, V]) wait(ctx context.Context, t *thunk[V]) (Result[V], error) {
	select {
	case <-t.done:
		if t.err != nil {
			return Result[V]{Err: t.err}, t.err
		}
		return Result[V]{Value: t.value, Found: t.found}, nil
	case <-ctx.Done():
		err := errors.WrapTimeout(ctx.Err(), "loader", "Load", "waiting for batch")
		return Result[V]{Err: err}, err
	}
}

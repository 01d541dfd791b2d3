package loader

import (
	"log/slog"

	"github.com/c360/opscore/metric"
	"github.com/c360/opscore/pkg/cache"
)

// Option configures loader behavior using the functional options pattern.
type Option[K comparable, V any] func(*loaderOptions[K, V])

type loaderOptions[K comparable, V any] struct {
	metricsReg    metric.Registrar
	metricsPrefix string
	logger        *slog.Logger
}

// WithMetrics enables Prometheus metrics export for batching behavior and
// the scope cache. If registry is nil or prefix is empty, the option is
// ignored.
func WithMetrics[K comparable, V any](registry metric.Registrar, prefix string) Option[K, V] {
	return func(opts *loaderOptions[K, V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithLogger sets the logger used for batch fetch failures.
func WithLogger[K comparable, V any](logger *slog.Logger) Option[K, V] {
	return func(opts *loaderOptions[K, V]) {
		opts.logger = logger
	}
}

func applyOptions[K comparable, V any](options ...Option[K, V]) *loaderOptions[K, V] {
	opts := &loaderOptions[K, V]{}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}

// cacheOpts translates loader options into options for the scope cache.
func (o *loaderOptions[K, V]) cacheOpts() []cache.Option[K, *thunk[V]] {
	var opts []cache.Option[K, *thunk[V]]
	if o.metricsReg != nil {
		opts = append(opts, cache.WithMetrics[K, *thunk[V]](o.metricsReg, o.metricsPrefix))
	}
	return opts
}

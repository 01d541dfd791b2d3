package invalidation

import (
	"log/slog"

	"github.com/c360/opscore/metric"
)

// Option configures bus behavior using the functional options pattern.
type Option func(*busOptions)

type busOptions struct {
	metricsReg metric.Registrar
	logger     *slog.Logger
}

// WithMetrics enables Prometheus metrics export for eviction traffic.
func WithMetrics(registry metric.Registrar) Option {
	return func(opts *busOptions) {
		opts.metricsReg = registry
	}
}

// WithLogger sets the logger used for eviction debug traces.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *busOptions) {
		opts.logger = logger
	}
}

func applyOptions(options ...Option) *busOptions {
	opts := &busOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

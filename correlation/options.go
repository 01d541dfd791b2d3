package correlation

import (
	"log/slog"

	"github.com/c360/opscore/metric"
)

// Option configures walker behavior using the functional options pattern.
type Option func(*walkerOptions)

type walkerOptions struct {
	metricsReg metric.Registrar
	logger     *slog.Logger
}

// WithMetrics enables Prometheus metrics export for walk outcomes.
func WithMetrics(registry metric.Registrar) Option {
	return func(opts *walkerOptions) {
		opts.metricsReg = registry
	}
}

// WithLogger sets the logger used for incomplete-walk reports.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *walkerOptions) {
		opts.logger = logger
	}
}

func applyOptions(options ...Option) *walkerOptions {
	opts := &walkerOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

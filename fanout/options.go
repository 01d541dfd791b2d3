package fanout

import (
	"log/slog"

	"github.com/c360/opscore/metric"
)

// DefaultQueueSize is the per-subscriber buffer capacity when not
// overridden.
const DefaultQueueSize = 64

// Option configures broker behavior using the functional options pattern.
type Option[M any] func(*brokerOptions)

type brokerOptions struct {
	queueSize  int
	metricsReg metric.Registrar
	logger     *slog.Logger
}

// WithQueueSize sets the per-subscriber buffer capacity. Values below one
// are ignored.
func WithQueueSize[M any](size int) Option[M] {
	return func(opts *brokerOptions) {
		if size > 0 {
			opts.queueSize = size
		}
	}
}

// WithMetrics enables Prometheus metrics export for publish and delivery
// traffic.
func WithMetrics[M any](registry metric.Registrar) Option[M] {
	return func(opts *brokerOptions) {
		opts.metricsReg = registry
	}
}

// WithLogger sets the logger used for drop and filter-panic reports.
func WithLogger[M any](logger *slog.Logger) Option[M] {
	return func(opts *brokerOptions) {
		opts.logger = logger
	}
}

func applyOptions[M any](options ...Option[M]) *brokerOptions {
	opts := &brokerOptions{
		queueSize: DefaultQueueSize,
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

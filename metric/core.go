package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics contains platform-level metrics shared across components.
// Domain-specific metrics (loader dispatches, fanout drops, walker depth)
// are registered by their owning packages via Registry.Register.
type CoreMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec

	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewCoreMetrics creates a new CoreMetrics instance
func NewCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opscore",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of gateway operations",
			},
			[]string{"operation", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "opscore",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Gateway operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opscore",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by class",
			},
			[]string{"component", "class"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "opscore",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "opscore",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

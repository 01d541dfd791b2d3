package loader

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/opscore/metric"
)

// loaderMetrics holds Prometheus metrics for batching behavior.
type loaderMetrics struct {
	dispatches prometheus.Counter
	keys       prometheus.Counter
	failures   prometheus.Counter
	batchSize  prometheus.Histogram
}

// newLoaderMetrics creates and registers loader metrics with the registry.
// The prefix identifies the owning loader (e.g. "alert_by_id").
func newLoaderMetrics(registry metric.Registrar, prefix string) (*loaderMetrics, error) {
	m := &loaderMetrics{
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "opscore",
			Subsystem:   "loader",
			Name:        "dispatches_total",
			ConstLabels: prometheus.Labels{"loader": prefix},
			Help:        "Total number of downstream batch calls",
		}),
		keys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "opscore",
			Subsystem:   "loader",
			Name:        "keys_total",
			ConstLabels: prometheus.Labels{"loader": prefix},
			Help:        "Total number of distinct keys sent downstream",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "opscore",
			Subsystem:   "loader",
			Name:        "batch_failures_total",
			ConstLabels: prometheus.Labels{"loader": prefix},
			Help:        "Total number of batch calls that failed entirely",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "opscore",
			Subsystem:   "loader",
			Name:        "batch_size",
			ConstLabels: prometheus.Labels{"loader": prefix},
			Help:        "Distribution of keys per downstream batch call",
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}

	if err := registry.Register(prefix, "loader_dispatches", m.dispatches); err != nil {
		return nil, err
	}
	if err := registry.Register(prefix, "loader_keys", m.keys); err != nil {
		return nil, err
	}
	if err := registry.Register(prefix, "loader_failures", m.failures); err != nil {
		return nil, err
	}
	if err := registry.Register(prefix, "loader_batch_size", m.batchSize); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *loaderMetrics) recordDispatch(size int) {
	m.dispatches.Inc()
	m.keys.Add(float64(size))
	m.batchSize.Observe(float64(size))
}

func (m *loaderMetrics) recordFailure() { m.failures.Inc() }

package invalidation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/opscore/metric"
)

// busMetrics holds Prometheus metrics for eviction traffic, labeled by the
// registered cache name.
type busMetrics struct {
	evicts    *prometheus.CounterVec
	evictAlls *prometheus.CounterVec
}

func newBusMetrics(registry metric.Registrar) (*busMetrics, error) {
	m := &busMetrics{
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "invalidation",
			Name:      "evictions_total",
			Help:      "Total number of single-key invalidations",
		}, []string{"cache"}),
		evictAlls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "invalidation",
			Name:      "full_evictions_total",
			Help:      "Total number of full-cache invalidations",
		}, []string{"cache"}),
	}

	if err := registry.Register("invalidation", "evictions", m.evicts); err != nil {
		return nil, err
	}
	if err := registry.Register("invalidation", "full_evictions", m.evictAlls); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *busMetrics) recordEvict(cache string) {
	m.evicts.WithLabelValues(cache).Inc()
}

func (m *busMetrics) recordEvictAll(cache string) {
	m.evictAlls.WithLabelValues(cache).Inc()
}

package correlation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/opscore/metric"
)

// walkerMetrics holds Prometheus metrics for walk outcomes.
type walkerMetrics struct {
	walks        prometheus.Counter
	incomplete   prometheus.Counter
	duration     prometheus.Histogram
	nodesVisited prometheus.Histogram
}

func newWalkerMetrics(registry metric.Registrar) (*walkerMetrics, error) {
	m := &walkerMetrics{
		walks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "correlation",
			Name:      "walks_total",
			Help:      "Total number of correlation walks",
		}),
		incomplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "correlation",
			Name:      "incomplete_walks_total",
			Help:      "Total number of walks returning partial results",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opscore",
			Subsystem: "correlation",
			Name:      "walk_duration_seconds",
			Help:      "Walk duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		nodesVisited: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opscore",
			Subsystem: "correlation",
			Name:      "nodes_visited",
			Help:      "Distribution of nodes visited per walk",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}

	if err := registry.Register("correlation", "walks", m.walks); err != nil {
		return nil, err
	}
	if err := registry.Register("correlation", "incomplete_walks", m.incomplete); err != nil {
		return nil, err
	}
	if err := registry.Register("correlation", "walk_duration", m.duration); err != nil {
		return nil, err
	}
	if err := registry.Register("correlation", "nodes_visited", m.nodesVisited); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *walkerMetrics) recordWalk(meta Metadata, duration time.Duration) {
	m.walks.Inc()
	m.duration.Observe(duration.Seconds())
	m.nodesVisited.Observe(float64(meta.NodesVisited))
	if meta.Incomplete {
		m.incomplete.Inc()
	}
}

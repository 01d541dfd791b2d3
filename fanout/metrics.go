package fanout

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/opscore/metric"
)

// brokerMetrics holds Prometheus metrics for publish and delivery traffic,
// labeled by channel.
type brokerMetrics struct {
	published    *prometheus.CounterVec
	delivered    *prometheus.CounterVec
	drops        *prometheus.CounterVec
	filterPanics *prometheus.CounterVec
	subscribers  *prometheus.GaugeVec
}

func newBrokerMetrics(registry metric.Registrar) (*brokerMetrics, error) {
	m := &brokerMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "fanout",
			Name:      "published_total",
			Help:      "Total number of messages published per channel",
		}, []string{"channel"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "fanout",
			Name:      "delivered_total",
			Help:      "Total number of message deliveries enqueued per channel",
		}, []string{"channel"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "fanout",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped for slow subscribers",
		}, []string{"channel"}),
		filterPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opscore",
			Subsystem: "fanout",
			Name:      "filter_panics_total",
			Help:      "Total number of recovered filter panics",
		}, []string{"channel"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "opscore",
			Subsystem: "fanout",
			Name:      "subscribers",
			Help:      "Current number of subscribers per channel",
		}, []string{"channel"}),
	}

	if err := registry.Register("fanout", "published", m.published); err != nil {
		return nil, err
	}
	if err := registry.Register("fanout", "delivered", m.delivered); err != nil {
		return nil, err
	}
	if err := registry.Register("fanout", "dropped", m.drops); err != nil {
		return nil, err
	}
	if err := registry.Register("fanout", "filter_panics", m.filterPanics); err != nil {
		return nil, err
	}
	if err := registry.Register("fanout", "subscribers", m.subscribers); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *brokerMetrics) recordPublish(channel string) {
	m.published.WithLabelValues(channel).Inc()
}

func (m *brokerMetrics) recordDeliveries(channel string, n int) {
	m.delivered.WithLabelValues(channel).Add(float64(n))
}

func (m *brokerMetrics) recordDrop(channel string) {
	m.drops.WithLabelValues(channel).Inc()
}

func (m *brokerMetrics) recordFilterPanic(channel string) {
	m.filterPanics.WithLabelValues(channel).Inc()
}

func (m *brokerMetrics) subscriberAdded(channel string) {
	m.subscribers.WithLabelValues(channel).Inc()
}

func (m *brokerMetrics) subscriberRemoved(channel string) {
	m.subscribers.WithLabelValues(channel).Dec()
}

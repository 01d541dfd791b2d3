package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.Core)
	require.NotNil(t, registry.PrometheusRegistry())
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_dispatches_total",
		Help: "test counter",
	})

	err := registry.Register("loader", "dispatches_total", counter)
	require.NoError(t, err)

	// Same (component, name) pair is rejected
	other := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_other_total",
		Help: "test counter",
	})
	err = registry.Register("loader", "dispatches_total", other)
	assert.Error(t, err)

	// Same collector name under a different component key is caught by
	// Prometheus itself
	dup := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_dispatches_total",
		Help: "test counter",
	})
	err = registry.Register("fanout", "dispatches_total", dup)
	assert.Error(t, err)
}

func TestUnregister(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_subscribers",
		Help: "test gauge",
	})
	require.NoError(t, registry.Register("fanout", "subscribers", gauge))

	assert.True(t, registry.Unregister("fanout", "subscribers"))
	assert.False(t, registry.Unregister("fanout", "subscribers"))

	// Re-registration succeeds after unregister
	assert.NoError(t, registry.Register("fanout", "subscribers", gauge))
}

func TestHandler(t *testing.T) {
	registry := NewRegistry()
	registry.Core.NATSConnected.Set(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	registry.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "opscore_nats_connected")
}

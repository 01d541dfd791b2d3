package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/opscore/auth"
	"github.com/c360/opscore/event"
	"github.com/c360/opscore/fanout"
	"github.com/c360/opscore/loader"
)

func newTestServer(t *testing.T, authorizer auth.Authorizer) (*Server, *countingStore, *fanout.Broker[event.Event]) {
	t.Helper()

	store := seededStore()
	broker, err := fanout.New[event.Event]()
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })

	resolver, err := NewResolver(store, authorizer, broker,
		WithLoaderConfig(loader.Config{MaxBatchSize: 100, Window: 5 * time.Millisecond, Timeout: time.Second}))
	require.NoError(t, err)

	server, err := NewServer(DefaultConfig(), resolver, nil)
	require.NoError(t, err)
	require.NoError(t, server.Setup())
	server.running = true
	return server, store, broker
}

func postQuery(t *testing.T, ts *httptest.Server, body queryRequest) (*http.Response, queryResponse) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/query", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded queryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestQueryEndpointReturnsAlert(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, body := postQuery(t, ts, queryRequest{Operation: "alertById", ID: "alert-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body.Error)

	data, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var alert Alert
	require.NoError(t, json.Unmarshal(data, &alert))
	assert.Equal(t, "alert-1", alert.ID)
	assert.Equal(t, "case-1", alert.CaseID)
}

func TestQueryEndpointRejectsUnknownOperation(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, body := postQuery(t, ts, queryRequest{Operation: "dropAllTables"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "validation", body.Error.Class)
}

func TestQueryEndpointMapsAuthorizationTo403(t *testing.T) {
	server, _, _ := newTestServer(t, auth.DenyAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, body := postQuery(t, ts, queryRequest{Operation: "alertById", ID: "alert-1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "authorization", body.Error.Class)
	assert.Contains(t, body.Error.Message, "permission")
}

func TestQueryEndpointEnforcesBatchLimit(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	ids := make([]string, server.config.MaxBatchIDs+1)
	for i := range ids {
		ids[i] = "alert-1"
	}
	resp, body := postQuery(t, ts, queryRequest{Operation: "alertsByIds", IDs: ids})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, body.Error)
}

func TestQueryEndpointMethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMutationOverHTTPEvictsCaches(t *testing.T) {
	server, store, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, body := postQuery(t, ts, queryRequest{
		Operation: "updateAlertSeverity", ID: "alert-1", Severity: event.SeverityCritical,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body.Error)

	resp, body = postQuery(t, ts, queryRequest{Operation: "alertById", ID: "alert-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var alert Alert
	require.NoError(t, json.Unmarshal(data, &alert))
	assert.Equal(t, event.SeverityCritical, alert.Severity)

	// Each request carries its own scope.
	batches, _, _ := store.counts()
	assert.Equal(t, 2, batches)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	server.mu.Lock()
	server.running = false
	server.mu.Unlock()

	resp2, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestSubscribeOverWebSocket(t *testing.T) {
	server, _, broker := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/subscribe?channel=alerts&min_severity=HIGH"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// Give the subscription pump a moment to attach before publishing.
	require.Eventually(t, func() bool {
		return broker.SubscriberCount(event.ChannelAlerts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	low := event.AlertCreated{Meta: event.NewMeta(), AlertID: "a-low", CaseID: "c1", Severity: event.SeverityLow, Title: "noise"}
	critical := event.AlertCreated{Meta: event.NewMeta(), AlertID: "a-crit", CaseID: "c1", Severity: event.SeverityCritical, Title: "intrusion"}
	broker.Publish(event.ChannelAlerts, low)
	broker.Publish(event.ChannelAlerts, critical)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		Event   struct {
			AlertID  string         `json:"alert_id"`
			Severity event.Severity `json:"severity"`
		} `json:"event"`
	}
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "alert.created.v1", frame.Type)
	assert.Equal(t, event.ChannelAlerts, frame.Channel)
	assert.Equal(t, "a-crit", frame.Event.AlertID, "low severity event is filtered out")
	assert.Equal(t, event.SeverityCritical, frame.Event.Severity)
}

func TestSubscribeRejectsUnknownChannel(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/subscribe?channel=everything")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubscribeRejectsBadSeverity(t *testing.T) {
	server, _, _ := newTestServer(t, auth.AllowAll{})
	ts := httptest.NewServer(server.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/subscribe?channel=alerts&min_severity=EXTREME")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerLifecycle(t *testing.T) {
	store := seededStore()
	broker, err := fanout.New[event.Event]()
	require.NoError(t, err)
	defer broker.Close()

	resolver, err := NewResolver(store, auth.AllowAll{}, broker)
	require.NoError(t, err)

	config := DefaultConfig()
	config.BindAddress = "127.0.0.1:0"
	server, err := NewServer(config, resolver, nil)
	require.NoError(t, err)
	require.NoError(t, server.Setup())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}
	assert.True(t, server.IsRunning())

	require.NoError(t, server.Stop(5*time.Second))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.False(t, server.IsRunning())
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil, nil)
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.QueryPath = "no-slash"

	broker, err := fanout.New[event.Event]()
	require.NoError(t, err)
	defer broker.Close()
	resolver, err := NewResolver(NewMemoryEntityStore(), auth.AllowAll{}, broker)
	require.NoError(t, err)

	_, err = NewServer(bad, resolver, nil)
	assert.Error(t, err)
}

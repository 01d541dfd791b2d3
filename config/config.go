// Package config loads and validates the application configuration:
// defaults, then a JSON file, then environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/c360/opscore/correlation"
	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/gateway/graphql"
	"github.com/c360/opscore/graph"
	"github.com/c360/opscore/loader"
	"github.com/c360/opscore/natsclient"
)

// Graph backend constants
const (
	GraphBackendMemory = "memory" // In-memory store, for tests and local development
	GraphBackendNATS   = "nats"   // JetStream KV bucket, for production
)

// Config is the complete application configuration.
type Config struct {
	ServiceName string         `json:"service_name"`
	NATS        NATSConfig     `json:"nats"`
	Gateway     graphql.Config `json:"gateway"`
	Loader      LoaderConfig   `json:"loader"`
	Fanout      FanoutConfig   `json:"fanout"`
	Walker      WalkerConfig   `json:"walker"`
	Graph       GraphConfig    `json:"graph"`
	Export      ExportConfig   `json:"export"`
}

// NATSConfig defines NATS connection settings.
type NATSConfig struct {
	URL              string `json:"url"`
	MaxReconnects    int    `json:"max_reconnects,omitempty"`
	ReconnectWaitStr string `json:"reconnect_wait,omitempty"`
	TimeoutStr       string `json:"timeout,omitempty"`
	DrainTimeoutStr  string `json:"drain_timeout,omitempty"`

	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
}

// LoaderConfig defines the per-request batch loader settings.
type LoaderConfig struct {
	MaxBatchSize int    `json:"max_batch_size,omitempty"`
	WindowStr    string `json:"window,omitempty"`
	TimeoutStr   string `json:"timeout,omitempty"`

	window  time.Duration
	timeout time.Duration
}

// FanoutConfig defines the subscription broker settings.
type FanoutConfig struct {
	QueueSize int `json:"queue_size,omitempty"`
}

// WalkerConfig defines the correlation walker settings.
type WalkerConfig struct {
	// ScorePolicy is "reject" (drop unscored edges) or "assume"
	// (treat unscored edges as DefaultScore).
	ScorePolicy     string  `json:"score_policy,omitempty"`
	DefaultScore    float64 `json:"default_score,omitempty"`
	FetchTimeoutStr string  `json:"fetch_timeout,omitempty"`

	fetchTimeout time.Duration
}

// GraphConfig defines the correlation graph store settings.
type GraphConfig struct {
	Backend     string `json:"backend,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
	TTLStr      string `json:"ttl,omitempty"`
	History     int    `json:"history,omitempty"`
	Replicas    int    `json:"replicas,omitempty"`
	CacheTTLStr string `json:"cache_ttl,omitempty"`

	ttl      time.Duration
	cacheTTL time.Duration
}

// ExportConfig defines the asynchronous NATS event export settings.
type ExportConfig struct {
	Enabled   bool `json:"enabled"`
	Workers   int  `json:"workers,omitempty"`
	QueueSize int  `json:"queue_size,omitempty"`
}

// DefaultConfig returns the baseline configuration before file and
// environment overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "opscore",
		NATS: NATSConfig{
			URL:              "nats://localhost:4222",
			MaxReconnects:    -1,
			ReconnectWaitStr: "2s",
			TimeoutStr:       "5s",
			DrainTimeoutStr:  "30s",
		},
		Gateway: graphql.DefaultConfig(),
		Loader: LoaderConfig{
			MaxBatchSize: 100,
			WindowStr:    "2ms",
			TimeoutStr:   "10s",
		},
		Fanout: FanoutConfig{
			QueueSize: 64,
		},
		Walker: WalkerConfig{
			ScorePolicy:     "reject",
			DefaultScore:    0.5,
			FetchTimeoutStr: "10s",
		},
		Graph: GraphConfig{
			Backend:     GraphBackendMemory,
			Bucket:      "GRAPH_NODES",
			TTLStr:      "24h",
			History:     3,
			Replicas:    1,
			CacheTTLStr: "5m",
		},
		Export: ExportConfig{
			Enabled:   true,
			Workers:   2,
			QueueSize: 512,
		},
	}
}

// Validate checks every section and parses duration strings in place.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		c.ServiceName = "opscore"
	}

	if err := c.NATS.validate(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if err := c.Loader.validate(); err != nil {
		return err
	}
	if c.Fanout.QueueSize < 0 {
		return errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
			"fanout queue_size cannot be negative")
	}
	if err := c.Walker.validate(); err != nil {
		return err
	}
	if err := c.Graph.validate(); err != nil {
		return err
	}
	if c.Export.Workers < 0 || c.Export.QueueSize < 0 {
		return errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
			"export workers and queue_size cannot be negative")
	}
	return nil
}

func (n *NATSConfig) validate() error {
	if n.URL == "" {
		return errors.WrapValidation(errors.ErrInvalidConfig, "NATSConfig", "validate",
			"nats url is required")
	}

	var err error
	if n.reconnectWait, err = parseDuration("nats.reconnect_wait", n.ReconnectWaitStr, 2*time.Second); err != nil {
		return err
	}
	if n.timeout, err = parseDuration("nats.timeout", n.TimeoutStr, 5*time.Second); err != nil {
		return err
	}
	if n.drainTimeout, err = parseDuration("nats.drain_timeout", n.DrainTimeoutStr, 30*time.Second); err != nil {
		return err
	}
	return nil
}

func (l *LoaderConfig) validate() error {
	if l.MaxBatchSize < 0 {
		return errors.WrapValidation(errors.ErrInvalidConfig, "LoaderConfig", "validate",
			"max_batch_size cannot be negative")
	}

	var err error
	if l.window, err = parseDuration("loader.window", l.WindowStr, 2*time.Millisecond); err != nil {
		return err
	}
	if l.timeout, err = parseDuration("loader.timeout", l.TimeoutStr, 10*time.Second); err != nil {
		return err
	}
	return nil
}

func (w *WalkerConfig) validate() error {
	switch w.ScorePolicy {
	case "", "reject", "assume":
	default:
		return errors.WrapValidation(errors.ErrInvalidConfig, "WalkerConfig", "validate",
			fmt.Sprintf("unknown score_policy %q, want reject or assume", w.ScorePolicy))
	}
	if w.DefaultScore < 0 || w.DefaultScore > 1 {
		return errors.WrapValidation(errors.ErrScoreRange, "WalkerConfig", "validate",
			"default_score check")
	}

	var err error
	if w.fetchTimeout, err = parseDuration("walker.fetch_timeout", w.FetchTimeoutStr, 10*time.Second); err != nil {
		return err
	}
	return nil
}

func (g *GraphConfig) validate() error {
	switch g.Backend {
	case "", GraphBackendMemory, GraphBackendNATS:
	default:
		return errors.WrapValidation(errors.ErrInvalidConfig, "GraphConfig", "validate",
			fmt.Sprintf("unknown backend %q, want memory or nats", g.Backend))
	}
	if g.Bucket == "" {
		g.Bucket = "GRAPH_NODES"
	}
	if g.History < 0 || g.History > 255 {
		return errors.WrapValidation(errors.ErrInvalidConfig, "GraphConfig", "validate",
			"history must be between 0 and 255")
	}
	if g.Replicas < 0 {
		return errors.WrapValidation(errors.ErrInvalidConfig, "GraphConfig", "validate",
			"replicas cannot be negative")
	}

	var err error
	if g.ttl, err = parseDuration("graph.ttl", g.TTLStr, 24*time.Hour); err != nil {
		return err
	}
	if g.cacheTTL, err = parseDuration("graph.cache_ttl", g.CacheTTLStr, 5*time.Minute); err != nil {
		return err
	}
	return nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapValidation(err, "Config", "Validate",
			fmt.Sprintf("invalid duration for %s: %s", field, value))
	}
	if d <= 0 {
		return 0, errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("%s must be positive", field))
	}
	return d, nil
}

// NATSOptions translates the NATS section into client options. Validate
// must have been called first.
func (c *Config) NATSOptions() []natsclient.ClientOption {
	return []natsclient.ClientOption{
		natsclient.WithClientName(c.ServiceName),
		natsclient.WithMaxReconnects(c.NATS.MaxReconnects),
		natsclient.WithReconnectWait(c.NATS.reconnectWait),
		natsclient.WithTimeout(c.NATS.timeout),
		natsclient.WithDrainTimeout(c.NATS.drainTimeout),
	}
}

// LoaderConfig translates the loader section. Validate must have been
// called first.
func (c *Config) LoaderConfig() loader.Config {
	return loader.Config{
		MaxBatchSize: c.Loader.MaxBatchSize,
		Window:       c.Loader.window,
		Timeout:      c.Loader.timeout,
	}
}

// WalkerConfig translates the walker section. Validate must have been
// called first.
func (c *Config) WalkerConfig() correlation.Config {
	policy := correlation.ScoreRejectMissing
	if c.Walker.ScorePolicy == "assume" {
		policy = correlation.ScoreAssumeDefault
	}
	return correlation.Config{
		Policy:       policy,
		DefaultScore: c.Walker.DefaultScore,
		FetchTimeout: c.Walker.fetchTimeout,
	}
}

// KVConfig translates the graph section for the NATS-backed store.
// Validate must have been called first.
func (c *Config) KVConfig() graph.KVConfig {
	return graph.KVConfig{
		Bucket:   c.Graph.Bucket,
		TTL:      c.Graph.ttl,
		History:  uint8(c.Graph.History),
		Replicas: c.Graph.Replicas,
		CacheTTL: c.Graph.cacheTTL,
	}
}

// ExporterConfig translates the export section.
func (c *Config) ExporterConfig() graphql.ExporterConfig {
	cfg := graphql.DefaultExporterConfig()
	if c.Export.Workers > 0 {
		cfg.Workers = c.Export.Workers
	}
	if c.Export.QueueSize > 0 {
		cfg.QueueSize = c.Export.QueueSize
	}
	return cfg
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/opscore/correlation"
	"github.com/c360/opscore/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "opscore", cfg.ServiceName)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, GraphBackendMemory, cfg.Graph.Backend)
	assert.True(t, cfg.Export.Enabled)
}

func TestValidateParsesDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader.WindowStr = "5ms"
	cfg.Loader.TimeoutStr = "3s"
	cfg.Walker.FetchTimeoutStr = "2s"
	require.NoError(t, cfg.Validate())

	loaderCfg := cfg.LoaderConfig()
	assert.Equal(t, 5*time.Millisecond, loaderCfg.Window)
	assert.Equal(t, 3*time.Second, loaderCfg.Timeout)

	walkerCfg := cfg.WalkerConfig()
	assert.Equal(t, 2*time.Second, walkerCfg.FetchTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"bad duration", func(c *Config) { c.Loader.WindowStr = "soon" }},
		{"negative duration", func(c *Config) { c.Loader.TimeoutStr = "-1s" }},
		{"unknown score policy", func(c *Config) { c.Walker.ScorePolicy = "maybe" }},
		{"default score out of range", func(c *Config) { c.Walker.DefaultScore = 1.5 }},
		{"unknown graph backend", func(c *Config) { c.Graph.Backend = "etcd" }},
		{"history overflow", func(c *Config) { c.Graph.History = 300 }},
		{"negative fanout queue", func(c *Config) { c.Fanout.QueueSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestWalkerConfigPolicyTranslation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, correlation.ScoreRejectMissing, cfg.WalkerConfig().Policy)

	cfg.Walker.ScorePolicy = "assume"
	cfg.Walker.DefaultScore = 0.7
	require.NoError(t, cfg.Validate())

	walkerCfg := cfg.WalkerConfig()
	assert.Equal(t, correlation.ScoreAssumeDefault, walkerCfg.Policy)
	assert.InDelta(t, 0.7, walkerCfg.DefaultScore, 1e-9)
}

func TestLoaderReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opscore.json")
	body := `{
		"service_name": "opscore-test",
		"nats": {"url": "nats://broker:4222"},
		"loader": {"max_batch_size": 25, "window": "1ms"},
		"graph": {"backend": "nats", "bucket": "TEST_NODES"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("OPSCORE_NATS_URL", "nats://override:4222")
	t.Setenv("OPSCORE_EXPORT_ENABLED", "false")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "opscore-test", cfg.ServiceName)
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL, "env wins over file")
	assert.Equal(t, 25, cfg.LoaderConfig().MaxBatchSize)
	assert.Equal(t, time.Millisecond, cfg.LoaderConfig().Window)
	assert.Equal(t, GraphBackendNATS, cfg.Graph.Backend)
	assert.Equal(t, "TEST_NODES", cfg.KVConfig().Bucket)
	assert.False(t, cfg.Export.Enabled)
}

func TestLoaderWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "opscore", cfg.ServiceName)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader("/nonexistent/opscore.json").Load()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

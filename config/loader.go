package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/c360/opscore/errors"
)

// DefaultEnvPrefix is the prefix for environment variable overrides.
const DefaultEnvPrefix = "OPSCORE"

// Loader reads configuration in layers: defaults, then the JSON file,
// then environment overrides, then validation.
type Loader struct {
	path      string
	envPrefix string
}

// NewLoader creates a loader for the given file path. An empty path skips
// the file layer and runs on defaults plus environment overrides.
func NewLoader(path string) *Loader {
	return &Loader{path: path, envPrefix: DefaultEnvPrefix}
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load assembles and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, errors.WrapValidation(err, "Loader", "Load", "read config file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapValidation(err, "Loader", "Load", "parse config file")
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Only the
// settings that differ per deployment get one.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := l.env("SERVICE_NAME"); val != "" {
		cfg.ServiceName = val
	}

	if val := l.env("NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := l.env("NATS_MAX_RECONNECTS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.NATS.MaxReconnects = parsed
		}
	}

	if val := l.env("BIND_ADDRESS"); val != "" {
		cfg.Gateway.BindAddress = val
	}
	if val := l.env("CORS_ORIGINS"); val != "" {
		cfg.Gateway.CORSOrigins = strings.Split(val, ",")
	}

	if val := l.env("GRAPH_BACKEND"); val != "" {
		cfg.Graph.Backend = val
	}
	if val := l.env("GRAPH_BUCKET"); val != "" {
		cfg.Graph.Bucket = val
	}

	if val := l.env("EXPORT_ENABLED"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			cfg.Export.Enabled = parsed
		}
	}
}

func (l *Loader) env(key string) string {
	return os.Getenv(l.envPrefix + "_" + key)
}

package graphql

import (
	"fmt"
	"time"

	"github.com/c360/opscore/errors"
)

// Config holds configuration for the gateway HTTP server.
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address"`

	// QueryPath is the query/mutation endpoint path (default: "/query")
	QueryPath string `json:"query_path"`

	// SubscribePath is the WebSocket subscription path (default: "/subscribe")
	SubscribePath string `json:"subscribe_path"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool `json:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// TimeoutStr is the per-request timeout (default: "30s")
	TimeoutStr string `json:"timeout,omitempty"`

	// MaxBatchIDs caps how many ids one batch read may name (default: 500)
	MaxBatchIDs int `json:"max_batch_ids,omitempty"`

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// Validate ensures the configuration is valid and fills defaults in place.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.QueryPath == "" {
		c.QueryPath = "/query"
	}
	if c.QueryPath[0] != '/' {
		return errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
			"query_path must start with /")
	}

	if c.SubscribePath == "" {
		c.SubscribePath = "/subscribe"
	}
	if c.SubscribePath[0] != '/' {
		return errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
			"subscribe_path must start with /")
	}

	if c.TimeoutStr == "" {
		c.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapValidation(err, "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
				"timeout must be between 100ms and 5m")
		}
		c.timeout = timeout
	}

	if c.MaxBatchIDs == 0 {
		c.MaxBatchIDs = 500
	}
	if c.MaxBatchIDs < 1 || c.MaxBatchIDs > 10000 {
		return errors.WrapValidation(errors.ErrInvalidConfig, "Config", "Validate",
			"max_batch_ids must be between 1 and 10000")
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	return nil
}

// Timeout returns the parsed request timeout.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress:   ":8080",
		QueryPath:     "/query",
		SubscribePath: "/subscribe",
		EnableCORS:    true,
		CORSOrigins:   []string{"*"},
		TimeoutStr:    "30s",
		MaxBatchIDs:   500,
	}
}

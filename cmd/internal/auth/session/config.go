package session

import (
	"os"
	"strings"
	"time"

	"arcshell/cmd/internal/flagstore"
)

// Config defines runtime configuration for the Session Controller.
type Config struct {
	// RenewalInterval is the period of the background refresh while authenticated.
	RenewalInterval time.Duration

	// RequestTimeout bounds each Identity Service call and each flag store operation.
	RequestTimeout time.Duration

	// FlagKey is the durable flag key.
	FlagKey string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RenewalInterval: 50 * time.Second,
		RequestTimeout:  10 * time.Second,
		FlagKey:         flagstore.AuthenticatedKey,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables on top of
// DefaultConfig.
//
// Optional (durations must be valid Go duration strings):
//   - ARC_SESSION_RENEWAL_INTERVAL
//   - ARC_SESSION_REQUEST_TIMEOUT
//   - ARC_SESSION_FLAG_KEY
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv overrides base with the ARC_SESSION_* variables that are set.
func ApplyEnv(base Config) (Config, error) {
	cfg := base

	if v := os.Getenv("ARC_SESSION_RENEWAL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RenewalInterval = d
	}

	if v := os.Getenv("ARC_SESSION_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("ARC_SESSION_FLAG_KEY")); v != "" {
		cfg.FlagKey = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants. The request timeout must not exceed the renewal interval.
func (c Config) Validate() error {
	if c.RenewalInterval <= 0 || c.RequestTimeout <= 0 {
		return ErrConfig
	}
	if c.RequestTimeout > c.RenewalInterval {
		return ErrConfig
	}
	if strings.TrimSpace(c.FlagKey) == "" {
		return ErrConfig
	}
	return nil
}

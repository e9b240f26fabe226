// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so every field can be set from the environment.
// - New() returns the defaults; Load layers a YAML file and env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// PortalBaseURL is the root of the portal gateway that owns the QR-code login.
	PortalBaseURL string `koanf:"portal_base_url"`

	// PortalTimeoutMS bounds each portal call, retries excluded.
	PortalTimeoutMS int `koanf:"portal_timeout_ms"`

	// PortalMaxRetries is the number of extra attempts on transient portal failures.
	PortalMaxRetries int `koanf:"portal_max_retries"`

	// PinCode is the fixed PIN sent with every QR-code login.
	PinCode string `koanf:"pin_code"`

	// DeviceUUID identifies this service to the portal. Generated at startup when empty.
	DeviceUUID string `koanf:"device_uuid"`

	// CacheEnabled turns on the Redis report cache.
	CacheEnabled bool `koanf:"cache_enabled"`

	// RedisAddr, RedisPassword and RedisDB locate the cache.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// CacheTTLSeconds is how long a computed report stays cached.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// LevelPoints overrides or extends the level-to-points table.
	LevelPoints map[string]float64 `koanf:"level_points"`

	// RoundingStep is the multiple per-prefix averages are rounded to.
	RoundingStep float64 `koanf:"rounding_step"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":3000",
		PortalBaseURL:    "http://localhost:3001",
		PortalTimeoutMS:  15_000,
		PortalMaxRetries: 2,
		PinCode:          "0000",
		CacheEnabled:     false,
		RedisAddr:        "localhost:6379",
		CacheTTLSeconds:  300,
		RoundingStep:     10,
	}
}

// Validate checks the values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.PortalBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: portal_base_url must be an absolute URL, got %q", ErrInvalidConfig, c.PortalBaseURL)
	}
	if c.PortalTimeoutMS <= 0 {
		return fmt.Errorf("%w: portal_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.PortalMaxRetries < 0 {
		return fmt.Errorf("%w: portal_max_retries must not be negative", ErrInvalidConfig)
	}
	if c.RoundingStep <= 0 {
		return fmt.Errorf("%w: rounding_step must be positive", ErrInvalidConfig)
	}
	if c.CacheEnabled {
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: redis_addr is required when cache_enabled is set", ErrInvalidConfig)
		}
		if c.CacheTTLSeconds <= 0 {
			return fmt.Errorf("%w: cache_ttl_seconds must be positive", ErrInvalidConfig)
		}
	}
	return nil
}

// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/cachemux/internal/cache"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
)

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     cache.Config    `yaml:"cache"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	Memory    MemoryConfig    `yaml:"memory"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Listeners ListenerConfig  `yaml:"listeners"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// SemanticConfig wraps the matcher configuration with an on/off switch.
// When disabled, lookups are exact-match only.
type SemanticConfig struct {
	Enabled bool `yaml:"enabled"`

	semantic.Config `yaml:",inline"`
}

// MemoryConfig tunes the tiered conversational memory.
type MemoryConfig struct {
	L1Capacity      int           `yaml:"l1_capacity"`
	L2Capacity      int           `yaml:"l2_capacity"`
	RecallThreshold float64       `yaml:"recall_threshold"`
	L3TTL           time.Duration `yaml:"l3_ttl"`
}

// AuthConfig selects the API key store.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Store   string `yaml:"store"` // memory, postgres

	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains connection settings for the key store.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` // May be a secret reference (env://, vault://)
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RateLimitConfig defines fixed-window rate limiting parameters.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int64         `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
	Scope   string        `yaml:"scope"` // local, redis
}

// ListenerConfig selects the listener registration store.
type ListenerConfig struct {
	Store string `yaml:"store"` // memory, redis
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Cache: cache.DefaultConfig(),
		Semantic: SemanticConfig{
			Enabled: false,
			Config:  semantic.DefaultConfig(),
		},
		Memory: MemoryConfig{
			L1Capacity:      10,
			L2Capacity:      20,
			RecallThreshold: 0.60,
			L3TTL:           30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			Enabled: false,
			Store:   "memory",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "cachemux",
				SSLMode:  "disable",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Limit:   100,
			Window:  time.Minute,
			Scope:   "local",
		},
		Listeners: ListenerConfig{
			Store: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "cachemux",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Cache.Type {
	case cache.StoreTypeLocal, cache.StoreTypeRedis, cache.StoreTypeDual, "":
	default:
		return fmt.Errorf("invalid cache type: %q (want local, redis or dual)", c.Cache.Type)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	if c.Cache.MaxValueKB < 0 {
		return fmt.Errorf("cache.max_value_kb cannot be negative")
	}
	if c.Cache.Type != cache.StoreTypeLocal && c.Cache.Type != "" &&
		c.Cache.Redis.Addr == "" &&
		len(c.Cache.Redis.ClusterAddrs) == 0 && len(c.Cache.Redis.SentinelAddrs) == 0 {
		return fmt.Errorf("cache type %q requires a redis address", c.Cache.Type)
	}

	if c.Semantic.Enabled {
		if err := c.Semantic.Config.Validate(); err != nil {
			return fmt.Errorf("semantic: %w", err)
		}
	}

	if c.Memory.L1Capacity < 0 || c.Memory.L2Capacity < 0 {
		return fmt.Errorf("memory tier capacities cannot be negative")
	}
	if c.Memory.RecallThreshold < 0 || c.Memory.RecallThreshold > 1 {
		return fmt.Errorf("memory.recall_threshold must be in [0, 1]")
	}

	switch c.Auth.Store {
	case "", "memory", "postgres":
	default:
		return fmt.Errorf("invalid auth store: %q (want memory or postgres)", c.Auth.Store)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return fmt.Errorf("rate_limit.limit must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive")
		}
		switch c.RateLimit.Scope {
		case "", "local", "redis":
		default:
			return fmt.Errorf("invalid rate_limit.scope: %q (want local or redis)", c.RateLimit.Scope)
		}
	}

	switch c.Listeners.Store {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("invalid listeners store: %q (want memory or redis)", c.Listeners.Store)
	}

	return nil
}

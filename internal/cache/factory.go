package cache

import (
	"fmt"
	"time"
)

// Config holds the complete exact-store configuration.
type Config struct {
	Type       StoreType         `yaml:"type"`        // Store type: local, redis, dual
	TTL        time.Duration     `yaml:"ttl"`         // Default TTL
	MaxValueKB int               `yaml:"max_value_kb"` // Max cacheable value size in KiB
	Memory     MemoryStoreConfig `yaml:"memory"`      // In-memory store config
	Redis      RedisConfig       `yaml:"redis"`       // Redis store config
	Dual       DualStoreConfig   `yaml:"dual"`        // Dual store config
}

// StoreTypeDual layers the local store over Redis.
const StoreTypeDual StoreType = "dual"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:       StoreTypeLocal,
		TTL:        time.Hour,
		MaxValueKB: 10 * 1024,
		Memory:     DefaultMemoryStoreConfig(),
		Redis:      DefaultRedisConfig(),
		Dual:       DefaultDualStoreConfig(),
	}
}

// NewStore creates an exact store from configuration.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeLocal, "":
		memCfg := cfg.Memory
		if cfg.TTL > 0 {
			memCfg.DefaultTTL = cfg.TTL
		}
		if cfg.MaxValueKB > 0 {
			memCfg.MaxItemSize = cfg.MaxValueKB * 1024
		}
		return NewMemoryStore(memCfg), nil

	case StoreTypeRedis:
		redisCfg := cfg.Redis
		if cfg.TTL > 0 {
			redisCfg.DefaultTTL = cfg.TTL
		}
		return NewRedisStore(redisCfg)

	case StoreTypeDual:
		memCfg := cfg.Memory
		if cfg.MaxValueKB > 0 {
			memCfg.MaxItemSize = cfg.MaxValueKB * 1024
		}
		local := NewMemoryStore(memCfg)

		redisCfg := cfg.Redis
		if cfg.TTL > 0 {
			redisCfg.DefaultTTL = cfg.TTL
		}
		redis, err := NewRedisStore(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}

		dualCfg := cfg.Dual
		if cfg.TTL > 0 {
			dualCfg.RedisTTL = cfg.TTL
		}
		return NewDualStore(local, redis, dualCfg), nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

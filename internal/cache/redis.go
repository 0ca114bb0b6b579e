package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	cmerrors "github.com/blueberrycongee/cachemux/pkg/errors"
)

// RedisStore implements Store using Redis as backend. Entries are stored
// as JSON under a configurable key prefix; TTL is native Redis expiry.
type RedisStore struct {
	client     goredis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration

	// Statistics
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	purgedCnt atomic.Int64
	errCnt    atomic.Int64
}

// RedisConfig holds configuration for RedisStore.
type RedisConfig struct {
	// Single node configuration
	Addr     string `yaml:"addr"`     // Redis address (e.g., "localhost:6379")
	Password string `yaml:"password"` // Redis password
	DB       int    `yaml:"db"`       // Redis database number

	// Cluster configuration
	ClusterAddrs []string `yaml:"cluster_addrs"` // Redis cluster addresses

	// Sentinel configuration
	SentinelAddrs  []string `yaml:"sentinel_addrs"`  // Sentinel addresses
	SentinelMaster string   `yaml:"sentinel_master"` // Sentinel master name

	// Common configuration
	KeyPrefix    string        `yaml:"key_prefix"`     // Prefix for all keys
	DefaultTTL   time.Duration `yaml:"default_ttl"`    // Default TTL (default: 1 hour)
	DialTimeout  time.Duration `yaml:"dial_timeout"`   // Connection timeout
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // Read timeout
	WriteTimeout time.Duration `yaml:"write_timeout"`  // Write timeout
	PoolSize     int           `yaml:"pool_size"`      // Connection pool size
	MinIdleConns int           `yaml:"min_idle_conns"` // Minimum idle connections
	MaxRetries   int           `yaml:"max_retries"`    // Maximum retries
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		KeyPrefix:    "cachemux",
		DefaultTTL:   time.Hour,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	}
}

// NewRedisStore creates a new Redis-backed exact store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}

	var client goredis.UniversalClient

	switch {
	case len(cfg.ClusterAddrs) > 0:
		client = goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
		})
	case len(cfg.SentinelAddrs) > 0:
		client = goredis.NewFailoverClient(&goredis.FailoverOptions{
			MasterName:    cfg.SentinelMaster,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			MaxRetries:    cfg.MaxRetries,
		})
	default:
		client = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client, used by tests.
func NewRedisStoreWithClient(client goredis.UniversalClient, keyPrefix string, defaultTTL time.Duration) *RedisStore {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisStore{
		client:     client,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

// prefixKey adds the store prefix to a key.
func (s *RedisStore) prefixKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

// Get retrieves an entry from Redis. Returns nil, nil on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			s.misses.Add(1)
			return nil, nil
		}
		s.errCnt.Add(1)
		return nil, cmerrors.NewUpstreamUnavailableError("redis", fmt.Sprintf("redis get: %v", err))
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.errCnt.Add(1)
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}

	s.hits.Add(1)

	// Hit metadata write-back is best effort and keeps the native TTL.
	entry.HitCount++
	if updated, err := json.Marshal(&entry); err == nil {
		_ = s.client.Set(ctx, s.prefixKey(key), updated, goredis.KeepTTL).Err()
	}

	return &entry, nil
}

// Set stores an entry with TTL. Native Redis expiry makes re-sets reset
// the TTL automatically.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, s.prefixKey(key), data, ttl).Err(); err != nil {
		s.errCnt.Add(1)
		return cmerrors.NewUpstreamUnavailableError("redis", fmt.Sprintf("redis set: %v", err))
	}

	s.sets.Add(1)
	return nil
}

// Delete removes a key from Redis.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefixKey(key)).Err(); err != nil {
		s.errCnt.Add(1)
		return cmerrors.NewUpstreamUnavailableError("redis", fmt.Sprintf("redis del: %v", err))
	}
	return nil
}

// Purge scans for matching keys and removes them. The namespace filter
// narrows the SCAN pattern; pattern and age filters are applied per key.
func (s *RedisStore) Purge(ctx context.Context, f Filter) (int64, error) {
	if f.Empty() {
		return 0, nil
	}

	scanPattern := s.prefixKey("*")
	if f.Namespace != "" {
		scanPattern = s.prefixKey(f.Namespace + ":*")
	}

	var removed int64
	now := time.Now()
	prefixLen := 0
	if s.keyPrefix != "" {
		prefixLen = len(s.keyPrefix) + 1
	}

	iter := s.client.Scan(ctx, 0, scanPattern, 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		key := fullKey
		if prefixLen > 0 && len(fullKey) > prefixLen {
			key = fullKey[prefixLen:]
		}

		if f.Pattern != "" {
			ok, err := path.Match(f.Pattern, key)
			if err != nil || !ok {
				continue
			}
		}

		if f.OlderThan > 0 {
			data, err := s.client.Get(ctx, fullKey).Bytes()
			if err != nil {
				continue // expired or gone between SCAN and GET
			}
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				continue
			}
			if now.Sub(time.Unix(entry.CreatedAt, 0)) < f.OlderThan {
				continue
			}
		}

		if err := s.client.Del(ctx, fullKey).Err(); err != nil {
			s.errCnt.Add(1)
			return removed, cmerrors.NewUpstreamUnavailableError("redis", fmt.Sprintf("redis del during purge: %v", err))
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		s.errCnt.Add(1)
		return removed, cmerrors.NewUpstreamUnavailableError("redis", fmt.Sprintf("redis scan: %v", err))
	}

	s.purgedCnt.Add(removed)
	return removed, nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Stats returns store statistics.
func (s *RedisStore) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    s.sets.Load(),
		Purged:  s.purgedCnt.Load(),
		Errors:  s.errCnt.Load(),
		HitRate: hitRate,
	}
}

package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// DualStore layers an in-memory store (L1) over Redis (L2). Writes go to
// both; reads check L1 first, then L2 with local backfill. Redis read
// failures fall through to a miss so a Redis outage never blocks lookups,
// while write failures surface because durability was not achieved.
type DualStore struct {
	local  *MemoryStore
	redis  *RedisStore
	config DualStoreConfig

	// Statistics
	localHits atomic.Int64
	redisHits atomic.Int64
	misses    atomic.Int64
	backfills atomic.Int64
}

// DualStoreConfig holds configuration for DualStore.
type DualStoreConfig struct {
	LocalTTL time.Duration // TTL for local entries (default: 5 minutes)
	RedisTTL time.Duration // Default TTL for Redis entries (default: 1 hour)
}

// DefaultDualStoreConfig returns sensible defaults.
func DefaultDualStoreConfig() DualStoreConfig {
	return DualStoreConfig{
		LocalTTL: 5 * time.Minute,
		RedisTTL: time.Hour,
	}
}

// NewDualStore creates a two-tier exact store.
func NewDualStore(local *MemoryStore, redis *RedisStore, cfg DualStoreConfig) *DualStore {
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = 5 * time.Minute
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = time.Hour
	}

	return &DualStore{
		local:  local,
		redis:  redis,
		config: cfg,
	}
}

// Get checks local first, then Redis with a best-effort local backfill.
func (s *DualStore) Get(ctx context.Context, key string) (*Entry, error) {
	if entry, err := s.local.Get(ctx, key); err == nil && entry != nil {
		s.localHits.Add(1)
		return entry, nil
	}

	if s.redis != nil {
		entry, err := s.redis.Get(ctx, key)
		if err != nil {
			if errors.IsUpstreamUnavailable(err) {
				s.misses.Add(1)
				return nil, err
			}
			return nil, err
		}
		if entry != nil {
			s.redisHits.Add(1)
			_ = s.local.Set(ctx, key, entry, s.config.LocalTTL) //nolint:errcheck // backfill is best-effort
			s.backfills.Add(1)
			return entry, nil
		}
	}

	s.misses.Add(1)
	return nil, nil
}

// Set stores the entry in both tiers. The local tier gets its own shorter
// TTL so stale entries fall out quickly after a Redis-side purge.
func (s *DualStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	redisTTL := ttl
	if redisTTL <= 0 {
		redisTTL = s.config.RedisTTL
	}

	if err := s.local.Set(ctx, key, entry, s.config.LocalTTL); err != nil {
		return err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, entry, redisTTL); err != nil {
			return err
		}
	}

	return nil
}

// Delete removes a key from both tiers.
func (s *DualStore) Delete(ctx context.Context, key string) error {
	_ = s.local.Delete(ctx, key) //nolint:errcheck // best-effort local delete
	if s.redis != nil {
		return s.redis.Delete(ctx, key)
	}
	return nil
}

// Purge removes matching entries from both tiers. The reported count is
// the Redis count when Redis is configured, since the local tier holds a
// subset of the same entries.
func (s *DualStore) Purge(ctx context.Context, f Filter) (int64, error) {
	localCount, err := s.local.Purge(ctx, f)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		return s.redis.Purge(ctx, f)
	}
	return localCount, nil
}

// Ping checks both tiers; local always succeeds, so this reports Redis
// health when Redis is configured.
func (s *DualStore) Ping(ctx context.Context) error {
	if s.redis != nil {
		return s.redis.Ping(ctx)
	}
	return s.local.Ping(ctx)
}

// Close releases both tiers.
func (s *DualStore) Close() error {
	_ = s.local.Close() //nolint:errcheck // local close cannot fail meaningfully
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// Stats merges statistics from both tiers.
func (s *DualStore) Stats() Stats {
	hits := s.localHits.Load() + s.redisHits.Load()
	misses := s.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	stats := Stats{
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
	if s.redis != nil {
		rs := s.redis.Stats()
		stats.Sets = rs.Sets
		stats.Purged = rs.Purged
		stats.Errors = rs.Errors
	} else {
		ls := s.local.Stats()
		stats.Sets = ls.Sets
		stats.Purged = ls.Purged
	}
	return stats
}

// BackfillCount reports how many L2 hits were copied into L1, for tests.
func (s *DualStore) BackfillCount() int64 {
	return s.backfills.Load()
}

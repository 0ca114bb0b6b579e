// Package cache provides exact-match caching for LLM responses.
// It supports in-memory and Redis backends with TTL-bound entries,
// deterministic request fingerprinting, and filtered invalidation.
package cache

import (
	"context"
	"time"
)

// StoreType represents the type of exact-store backend.
type StoreType string

const (
	StoreTypeLocal StoreType = "local" // In-memory store
	StoreTypeRedis StoreType = "redis" // Redis store
)

// Entry is a stored request/response pair with its cache metadata.
// Fingerprint is the digest portion of the key; the full storage key is
// namespace-prefixed so identical fingerprints in different namespaces
// never collide.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	Namespace   string `json:"namespace"`
	Value       []byte `json:"value"`
	Model       string `json:"model,omitempty"`
	Provider    string `json:"provider,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	CreatedAt   int64  `json:"created_at"` // Unix timestamp
	HitCount    int64  `json:"hit_count"`
}

// Filter selects entries for invalidation. Fields combine conjunctively;
// at least one of Pattern, Namespace, or OlderThan must be set.
type Filter struct {
	Pattern   string        `json:"pattern,omitempty"`    // Glob against the storage key
	Namespace string        `json:"namespace,omitempty"`  // Exact namespace scope
	OlderThan time.Duration `json:"older_than,omitempty"` // Entry age lower bound
}

// Empty reports whether no filter field is set.
func (f Filter) Empty() bool {
	return f.Pattern == "" && f.Namespace == "" && f.OlderThan <= 0
}

// Stats holds store statistics for monitoring.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Purged  int64   `json:"purged"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Store defines the interface for exact-match cache backends.
type Store interface {
	// Get retrieves an entry by its full storage key.
	// Returns nil, nil on a miss; expired entries count as misses.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry with the given TTL. If TTL is 0 the backend
	// default applies. Set is idempotent: re-setting an existing key
	// overwrites the value and resets the TTL.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Purge removes every entry matching the filter and returns the
	// number removed. An empty scope purges nothing and returns 0.
	Purge(ctx context.Context, f Filter) (int64, error)

	// Ping checks if the backend is healthy.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error

	// Stats returns store statistics.
	Stats() Stats
}

package auth

import (
	"context"
	"time"
)

// Store persists API keys. Implementations return nil, nil when no key
// matches a hash so callers can distinguish "unknown key" from a
// backend failure.
type Store interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error)
	CreateAPIKey(ctx context.Context, key *APIKey) error
	UpdateAPIKeyLastUsed(ctx context.Context, keyID string, lastUsed time.Time) error
	DeleteAPIKey(ctx context.Context, keyID string) error
	ListAPIKeys(ctx context.Context) ([]*APIKey, error)
	Ping(ctx context.Context) error
	Close() error
}

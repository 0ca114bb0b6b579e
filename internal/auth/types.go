// Package auth maps API keys to namespace grants. Every cache, memory,
// and invalidation operation is namespace-qualified; the registry here
// decides whether an authenticated key may touch the namespace a
// request names.
package auth

import (
	"time"
)

// APIKey is a stored credential with its namespace grants. The raw key
// is never persisted, only its SHA-256 hash.
type APIKey struct {
	ID        string `json:"id"`
	KeyHash   string `json:"-"`
	KeyPrefix string `json:"key_prefix"`
	Name      string `json:"name"`

	// Namespaces the key may read and write. A single "*" entry grants
	// every namespace.
	Namespaces []string `json:"namespaces"`

	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// IsExpired reports whether the key is past its expiry.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}

// AllowsNamespace reports whether the key may operate on the namespace.
func (k *APIKey) AllowsNamespace(namespace string) bool {
	if namespace == "" {
		namespace = "default"
	}
	for _, ns := range k.Namespaces {
		if ns == "*" || ns == namespace {
			return true
		}
	}
	return false
}

// AuthContext carries the authenticated identity through a request.
type AuthContext struct {
	APIKey *APIKey
}

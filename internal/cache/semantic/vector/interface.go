// Package vector provides vector storage interfaces and implementations
// for similarity matching. Backends speak cosine similarity; stores that
// report distance convert at the adapter boundary (distance = 1 - score).
package vector

import (
	"context"
	"time"
)

// Store defines the interface for vector storage backends.
type Store interface {
	// Search finds similar vectors within the distance threshold,
	// scoped to the namespace in opts. Results are sorted by score
	// descending; equal scores order by most recent CreatedAt first.
	Search(ctx context.Context, vector []float64, opts SearchOptions) ([]SearchResult, error)

	// Insert stores a vector with associated payload.
	Insert(ctx context.Context, entry Entry) error

	// InsertBatch stores multiple vectors in a single operation.
	InsertBatch(ctx context.Context, entries []Entry) error

	// Delete removes a vector by ID.
	Delete(ctx context.Context, id string) error

	// DeleteNamespace removes every vector in a namespace and returns
	// the number removed, or -1 when the backend cannot count.
	DeleteNamespace(ctx context.Context, namespace string) (int64, error)

	// Ping checks if the vector store is healthy.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// SearchOptions configures vector search behavior.
type SearchOptions struct {
	// TopK is the maximum number of results to return.
	TopK int

	// DistanceThreshold is the maximum distance for a result to be
	// included. For cosine distance: 0 = identical, 2 = opposite.
	// Results with distance > DistanceThreshold are excluded.
	DistanceThreshold float64

	// Namespace restricts the search to one namespace. Empty searches
	// the default namespace, never all of them.
	Namespace string
}

// SearchResult represents a single search result.
type SearchResult struct {
	// ID is the unique identifier of the vector.
	ID string

	// Score is the cosine similarity (1 = identical, 0 = orthogonal).
	Score float64

	// Distance is 1 - Score.
	Distance float64

	// Payload contains the data associated with this vector.
	Payload Payload
}

// Entry represents a vector entry to be stored.
type Entry struct {
	// ID is the unique identifier for this entry.
	// If empty, a UUID will be generated.
	ID string

	// Vector is the embedding vector.
	Vector []float64

	// Payload contains the data to index.
	Payload Payload

	// TTL is the time-to-live for this entry.
	// If zero, the entry does not expire.
	TTL time.Duration
}

// Payload is the indexed source text and its associated value.
type Payload struct {
	// Prompt is the text the embedding was generated from.
	Prompt string `json:"prompt"`

	// Value is the stored payload returned on a match.
	Value string `json:"value"`

	// Namespace scopes the entry to one tenant.
	Namespace string `json:"namespace,omitempty"`

	// Model is the model associated with the value, if any.
	Model string `json:"model,omitempty"`

	// CreatedAt is the unix timestamp when this entry was created.
	CreatedAt int64 `json:"created_at,omitempty"`
}

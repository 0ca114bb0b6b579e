package vector

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemStore is a thread-safe in-memory vector store doing brute-force
// cosine similarity search. Intended for development and tests; the
// Qdrant adapter serves production traffic.
type InMemStore struct {
	mu      sync.RWMutex
	entries map[string]*storedEntry
}

type storedEntry struct {
	entry     Entry
	expiresAt int64 // unix nano, 0 = no expiry
}

// NewInMemStore creates an empty in-memory vector store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		entries: make(map[string]*storedEntry),
	}
}

// Search performs a namespace-scoped brute-force scan. Expired entries
// are skipped and removed lazily.
func (s *InMemStore) Search(ctx context.Context, query []float64, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 1
	}

	s.mu.RLock()
	now := time.Now().UnixNano()
	var results []SearchResult
	var dead []string

	for id, se := range s.entries {
		if se.expiresAt > 0 && se.expiresAt <= now {
			dead = append(dead, id)
			continue
		}
		if se.entry.Payload.Namespace != opts.Namespace {
			continue
		}
		if len(se.entry.Vector) != len(query) {
			continue // skip mismatched dimensions
		}

		score := cosineSimilarity(query, se.entry.Vector)
		distance := 1 - score
		if opts.DistanceThreshold > 0 && distance > opts.DistanceThreshold {
			continue
		}

		results = append(results, SearchResult{
			ID:       id,
			Score:    score,
			Distance: distance,
			Payload:  se.entry.Payload,
		})
	}
	s.mu.RUnlock()

	if len(dead) > 0 {
		s.mu.Lock()
		for _, id := range dead {
			delete(s.entries, id)
		}
		s.mu.Unlock()
	}

	// Score descending; equal scores break toward the newer entry.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Payload.CreatedAt > results[j].Payload.CreatedAt
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// Insert stores a vector entry.
func (s *InMemStore) Insert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Payload.CreatedAt == 0 {
		entry.Payload.CreatedAt = time.Now().Unix()
	}

	var expiresAt int64
	if entry.TTL > 0 {
		expiresAt = time.Now().Add(entry.TTL).UnixNano()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = &storedEntry{entry: entry, expiresAt: expiresAt}
	return nil
}

// InsertBatch stores multiple entries.
func (s *InMemStore) InsertBatch(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := s.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an entry by ID.
func (s *InMemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// DeleteNamespace removes every entry in a namespace.
func (s *InMemStore) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, se := range s.entries {
		if se.entry.Payload.Namespace == namespace {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory store.
func (s *InMemStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases resources.
func (s *InMemStore) Close() error {
	return nil
}

// Len returns the number of live entries, used by tests.
func (s *InMemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package semantic

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic/embedding"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/vector"
)

// Matcher answers "have we seen something close enough to this before"
// over a vector store of previously indexed prompts. A candidate is a hit
// when its cosine similarity is at or above the threshold; a score exactly
// at the threshold counts as a hit.
type Matcher struct {
	embedder  embedding.Embedder
	store     vector.Store
	threshold float64
	ttl       time.Duration

	rerank          bool
	rerankThreshold float64

	// Statistics
	hits       atomic.Int64
	misses     atomic.Int64
	indexed    atomic.Int64
	errors     atomic.Int64
	embedCalls atomic.Int64
}

// NewMatcher creates a Matcher with the given embedder and vector store.
func NewMatcher(embedder embedding.Embedder, store vector.Store, cfg Config) (*Matcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}

	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = 0.90
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}

	return &Matcher{
		embedder:        embedder,
		store:           store,
		threshold:       cfg.SimilarityThreshold,
		ttl:             cfg.DefaultTTL,
		rerank:          cfg.EnableReranking,
		rerankThreshold: cfg.RerankingThreshold,
	}, nil
}

// Match is a successful similarity lookup.
type Match struct {
	// Value is the stored payload of the matched entry.
	Value string

	// Score is the cosine similarity of the match (0-1).
	Score float64

	// MatchedPrompt is the original text the entry was indexed under.
	MatchedPrompt string

	// Model is the model associated with the entry, if any.
	Model string
}

// FindSimilar returns the nearest indexed entry within the namespace that
// clears the threshold, or nil, nil on a miss. A threshold of 0 uses the
// configured default.
func (m *Matcher) FindSimilar(ctx context.Context, namespace, prompt string, threshold float64) (*Match, error) {
	if prompt == "" {
		m.misses.Add(1)
		return nil, nil
	}
	if threshold <= 0 || threshold > 1 {
		threshold = m.threshold
	}

	emb, err := m.embedder.Embed(ctx, prompt)
	if err != nil {
		m.errors.Add(1)
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	m.embedCalls.Add(1)

	results, err := m.store.Search(ctx, emb, vector.SearchOptions{
		TopK:              1,
		DistanceThreshold: 1 - threshold,
		Namespace:         namespace,
	})
	if err != nil {
		m.errors.Add(1)
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if len(results) == 0 {
		m.misses.Add(1)
		return nil, nil
	}

	best := results[0]
	if best.Score < threshold {
		m.misses.Add(1)
		return nil, nil
	}

	// Optional lexical guard: vectors occasionally place unrelated short
	// prompts close together, Jaccard word overlap catches those.
	if m.rerank {
		if overlap := CalculateStringSimilarity(prompt, best.Payload.Prompt); overlap < m.rerankThreshold {
			m.misses.Add(1)
			return nil, nil
		}
	}

	m.hits.Add(1)
	return &Match{
		Value:         best.Payload.Value,
		Score:         best.Score,
		MatchedPrompt: best.Payload.Prompt,
		Model:         best.Payload.Model,
	}, nil
}

// Index adds a prompt/value pair to the namespace. Indexing is additive;
// near-duplicate prompts coexist and recency breaks score ties at lookup.
func (m *Matcher) Index(ctx context.Context, namespace, prompt, value, model string, ttl time.Duration) error {
	if prompt == "" || value == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	emb, err := m.embedder.Embed(ctx, prompt)
	if err != nil {
		m.errors.Add(1)
		return fmt.Errorf("generate embedding: %w", err)
	}
	m.embedCalls.Add(1)

	entry := vector.Entry{
		ID:     uuid.New().String(),
		Vector: emb,
		Payload: vector.Payload{
			Prompt:    prompt,
			Value:     value,
			Namespace: namespace,
			Model:     model,
			CreatedAt: time.Now().Unix(),
		},
		TTL: ttl,
	}

	if err := m.store.Insert(ctx, entry); err != nil {
		m.errors.Add(1)
		return fmt.Errorf("vector insert: %w", err)
	}

	m.indexed.Add(1)
	return nil
}

// PurgeNamespace drops every indexed entry in the namespace. Returns the
// count removed or -1 when the backend cannot report one.
func (m *Matcher) PurgeNamespace(ctx context.Context, namespace string) (int64, error) {
	return m.store.DeleteNamespace(ctx, namespace)
}

// Threshold returns the configured default similarity threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Ping checks if the vector store is healthy.
func (m *Matcher) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Close releases resources held by the matcher.
func (m *Matcher) Close() error {
	return m.store.Close()
}

// Stats holds matcher statistics.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Indexed    int64   `json:"indexed"`
	Errors     int64   `json:"errors"`
	EmbedCalls int64   `json:"embed_calls"`
	HitRate    float64 `json:"hit_rate"`
}

// Stats returns matcher statistics.
func (m *Matcher) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:       hits,
		Misses:     misses,
		Indexed:    m.indexed.Load(),
		Errors:     m.errors.Load(),
		EmbedCalls: m.embedCalls.Load(),
		HitRate:    hitRate,
	}
}

package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic/embedding"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/vector"
)

func newTestMatcher(t *testing.T, cfg Config) (*Matcher, *embedding.StaticEmbedder) {
	t.Helper()
	emb := embedding.NewStaticEmbedder(3)
	m, err := NewMatcher(emb, vector.NewInMemStore(), cfg)
	require.NoError(t, err)
	return m, emb
}

func TestMatcher_FindSimilar(t *testing.T) {
	ctx := context.Background()

	t.Run("score at the threshold is a hit", func(t *testing.T) {
		m, emb := newTestMatcher(t, Config{SimilarityThreshold: 1.0})
		emb.Register("what is the capital of france", []float64{1, 0, 0})

		require.NoError(t, m.Index(ctx, "ns", "what is the capital of france", "Paris", "gpt-4o", time.Minute))

		match, err := m.FindSimilar(ctx, "ns", "what is the capital of france", 0)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "Paris", match.Value)
		assert.InDelta(t, 1.0, match.Score, 1e-9)
	})

	t.Run("score below the threshold is a miss", func(t *testing.T) {
		m, emb := newTestMatcher(t, Config{SimilarityThreshold: 0.95})
		emb.Register("what is the capital of france", []float64{1, 0, 0})
		emb.Register("how do I bake bread", []float64{0.6, 0.8, 0})

		require.NoError(t, m.Index(ctx, "ns", "what is the capital of france", "Paris", "gpt-4o", time.Minute))

		match, err := m.FindSimilar(ctx, "ns", "how do I bake bread", 0)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("per-call threshold overrides the default", func(t *testing.T) {
		m, emb := newTestMatcher(t, Config{SimilarityThreshold: 0.95})
		emb.Register("what is the capital of france", []float64{1, 0, 0})
		emb.Register("how do I bake bread", []float64{0.6, 0.8, 0})

		require.NoError(t, m.Index(ctx, "ns", "what is the capital of france", "Paris", "gpt-4o", time.Minute))

		match, err := m.FindSimilar(ctx, "ns", "how do I bake bread", 0.5)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.InDelta(t, 0.6, match.Score, 1e-9)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		m, emb := newTestMatcher(t, Config{SimilarityThreshold: 0.9})
		emb.Register("shared prompt", []float64{1, 0, 0})

		require.NoError(t, m.Index(ctx, "tenant-a", "shared prompt", "answer-a", "", time.Minute))

		match, err := m.FindSimilar(ctx, "tenant-b", "shared prompt", 0)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("empty prompt is a miss", func(t *testing.T) {
		m, _ := newTestMatcher(t, Config{})

		match, err := m.FindSimilar(ctx, "ns", "", 0)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("lexical guard rejects vector matches with no word overlap", func(t *testing.T) {
		m, emb := newTestMatcher(t, Config{
			SimilarityThreshold: 0.9,
			EnableReranking:     true,
			RerankingThreshold:  0.5,
		})
		// Identical vectors but entirely different words.
		emb.Register("reset my password", []float64{1, 0, 0})
		emb.Register("delete the production database", []float64{1, 0, 0})

		require.NoError(t, m.Index(ctx, "ns", "reset my password", "click forgot password", "", time.Minute))

		match, err := m.FindSimilar(ctx, "ns", "delete the production database", 0)
		require.NoError(t, err)
		assert.Nil(t, match)
	})
}

func TestMatcher_PurgeNamespace(t *testing.T) {
	ctx := context.Background()
	m, emb := newTestMatcher(t, Config{SimilarityThreshold: 0.9})
	emb.Register("prompt one", []float64{1, 0, 0})
	emb.Register("prompt two", []float64{0, 1, 0})

	require.NoError(t, m.Index(ctx, "tenant-a", "prompt one", "v1", "", time.Minute))
	require.NoError(t, m.Index(ctx, "tenant-b", "prompt two", "v2", "", time.Minute))

	n, err := m.PurgeNamespace(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	match, err := m.FindSimilar(ctx, "tenant-a", "prompt one", 0)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = m.FindSimilar(ctx, "tenant-b", "prompt two", 0)
	require.NoError(t, err)
	assert.NotNil(t, match)
}

func TestMatcher_Stats(t *testing.T) {
	ctx := context.Background()
	m, emb := newTestMatcher(t, Config{SimilarityThreshold: 0.9})
	emb.Register("known", []float64{1, 0, 0})

	require.NoError(t, m.Index(ctx, "ns", "known", "v", "", time.Minute))

	_, err := m.FindSimilar(ctx, "ns", "known", 0)
	require.NoError(t, err)
	_, err = m.FindSimilar(ctx, "other-ns", "known", 0)
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Indexed)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

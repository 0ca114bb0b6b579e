package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/embedding"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic/vector"
)

func TestAdmissionValidator_Hedging(t *testing.T) {
	v := NewAdmissionValidator(nil, 0)
	ctx := context.Background()

	cases := []struct {
		name    string
		content string
		accept  bool
	}{
		{"plain declarative", "the user's favorite language is Go", true},
		{"i think", "I think the deadline is Friday", false},
		{"maybe", "maybe we should use Postgres", false},
		{"not sure", "I'm not sure the config is right", false},
		{"i guess", "i guess the bug is in the parser", false},
		{"empty", "   ", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := v.Validate(ctx, "mem:default", tc.content)
			assert.Equal(t, tc.accept, d.Accept)
			if !tc.accept {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestAdmissionValidator_Confidence(t *testing.T) {
	v := NewAdmissionValidator(nil, 0)
	ctx := context.Background()

	d := v.Validate(ctx, "mem:default", "the user prefers dark mode")
	require.True(t, d.Accept)
	assert.InDelta(t, 1.0, d.Confidence, 1e-9)

	d = v.Validate(ctx, "mem:default", "the user usually works at night")
	require.True(t, d.Accept)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
}

func TestAdmissionValidator_Contradiction(t *testing.T) {
	ctx := context.Background()

	emb := embedding.NewStaticEmbedder(3)
	emb.Register("the staging server is running", []float64{1, 0, 0})
	emb.Register("the staging server is not running", []float64{1, 0, 0})
	emb.Register("the user likes coffee", []float64{0, 1, 0})

	matcher, err := semantic.NewMatcher(emb, vector.NewInMemStore(), semantic.Config{SimilarityThreshold: 0.9})
	require.NoError(t, err)

	require.NoError(t, matcher.Index(ctx, "mem:default", "the staging server is running", "x", "", time.Minute))

	v := NewAdmissionValidator(matcher, 0.85)

	t.Run("opposing statement rejected", func(t *testing.T) {
		d := v.Validate(ctx, "mem:default", "the staging server is not running")
		assert.False(t, d.Accept)
		assert.Contains(t, d.Reason, "contradicts")
	})

	t.Run("restating the same polarity is allowed", func(t *testing.T) {
		d := v.Validate(ctx, "mem:default", "the staging server is running")
		assert.True(t, d.Accept)
	})

	t.Run("unrelated fact is allowed", func(t *testing.T) {
		d := v.Validate(ctx, "mem:default", "the user likes coffee")
		assert.True(t, d.Accept)
	})
}

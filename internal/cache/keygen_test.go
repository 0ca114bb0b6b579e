package cache

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/cachemux/pkg/errors"
	"github.com/blueberrycongee/cachemux/pkg/types"
)

func userRequest(content string) *types.CacheRequest {
	return &types.CacheRequest{
		Provider: "openai",
		Model:    "gpt-4",
		Messages: []types.ChatMessage{
			{Role: "user", Content: content},
		},
	}
}

func TestFingerprinter_Fingerprint(t *testing.T) {
	fp := NewFingerprinter()

	t.Run("deterministic across calls", func(t *testing.T) {
		req := userRequest("hello")

		d1, err := fp.Fingerprint(req)
		require.NoError(t, err)
		d2, err := fp.Fingerprint(req)
		require.NoError(t, err)

		assert.Equal(t, d1, d2)
		assert.Len(t, d1, 64) // SHA-256 hex
	})

	t.Run("content changes the digest", func(t *testing.T) {
		d1, err := fp.Fingerprint(userRequest("hello"))
		require.NoError(t, err)
		d2, err := fp.Fingerprint(userRequest("world"))
		require.NoError(t, err)

		assert.NotEqual(t, d1, d2)
	})

	t.Run("message order changes the digest", func(t *testing.T) {
		req1 := &types.CacheRequest{
			Model: "gpt-4",
			Messages: []types.ChatMessage{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "hello"},
			},
		}
		req2 := &types.CacheRequest{
			Model: "gpt-4",
			Messages: []types.ChatMessage{
				{Role: "user", Content: "hello"},
				{Role: "system", Content: "be brief"},
			},
		}

		d1, err := fp.Fingerprint(req1)
		require.NoError(t, err)
		d2, err := fp.Fingerprint(req2)
		require.NoError(t, err)

		assert.NotEqual(t, d1, d2)
	})

	t.Run("temperature affects the digest", func(t *testing.T) {
		temp1, temp2 := 0.7, 0.9

		req1 := userRequest("hello")
		req1.Temperature = &temp1
		req2 := userRequest("hello")
		req2.Temperature = &temp2

		d1, err := fp.Fingerprint(req1)
		require.NoError(t, err)
		d2, err := fp.Fingerprint(req2)
		require.NoError(t, err)

		assert.NotEqual(t, d1, d2)
	})

	t.Run("max_tokens affects the digest", func(t *testing.T) {
		req1 := userRequest("hello")
		req1.MaxTokens = 100
		req2 := userRequest("hello")
		req2.MaxTokens = 200

		d1, err := fp.Fingerprint(req1)
		require.NoError(t, err)
		d2, err := fp.Fingerprint(req2)
		require.NoError(t, err)

		assert.NotEqual(t, d1, d2)
	})

	t.Run("extra params are order independent", func(t *testing.T) {
		req1 := userRequest("hello")
		req1.Extra = map[string]json.RawMessage{
			"seed":        json.RawMessage(`42`),
			"logit_bias":  json.RawMessage(`{"50256":-100}`),
			"粒度":          json.RawMessage(`"fine"`),
			"presence_pn": json.RawMessage(`0.5`),
		}
		req2 := userRequest("hello")
		req2.Extra = map[string]json.RawMessage{
			"presence_pn": json.RawMessage(`0.5`),
			"粒度":          json.RawMessage(`"fine"`),
			"logit_bias":  json.RawMessage(`{"50256":-100}`),
			"seed":        json.RawMessage(`42`),
		}

		// Maps iterate in random order; repeated digests must still agree.
		for i := 0; i < 10; i++ {
			d1, err := fp.Fingerprint(req1)
			require.NoError(t, err)
			d2, err := fp.Fingerprint(req2)
			require.NoError(t, err)
			assert.Equal(t, d1, d2)
		}
	})

	t.Run("missing model is rejected", func(t *testing.T) {
		req := userRequest("hello")
		req.Model = ""

		_, err := fp.Fingerprint(req)
		assert.True(t, errors.IsInvalidRequest(err))
	})

	t.Run("empty messages are rejected", func(t *testing.T) {
		req := &types.CacheRequest{Model: "gpt-4"}

		_, err := fp.Fingerprint(req)
		assert.True(t, errors.IsInvalidRequest(err))
	})
}

func TestFingerprinter_Key(t *testing.T) {
	fp := NewFingerprinter()

	t.Run("namespace prefixes the key", func(t *testing.T) {
		req := userRequest("hello")
		req.Namespace = "tenant-123"

		key, err := fp.Key(req)
		require.NoError(t, err)
		assert.Contains(t, key, "tenant-123:")
	})

	t.Run("empty namespace uses default", func(t *testing.T) {
		key, err := fp.Key(userRequest("hello"))
		require.NoError(t, err)
		assert.Contains(t, key, DefaultNamespace+":")
	})

	t.Run("same fingerprint differs across namespaces", func(t *testing.T) {
		req1 := userRequest("hello")
		req1.Namespace = "tenant-a"
		req2 := userRequest("hello")
		req2.Namespace = "tenant-b"

		key1, err := fp.Key(req1)
		require.NoError(t, err)
		key2, err := fp.Key(req2)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})
}

func BenchmarkFingerprinter_Fingerprint(b *testing.B) {
	fp := NewFingerprinter()
	req := userRequest("hello world, this is a test message")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fp.Fingerprint(req)
	}
}

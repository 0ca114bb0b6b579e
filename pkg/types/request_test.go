package types //nolint:revive // package name is intentional

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRequestUnmarshal(t *testing.T) {
	data := []byte(`{
		"provider": "openai",
		"model": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}],
		"temperature": 0.5,
		"namespace": "tenant-a",
		"extra": {"seed": 42, "logit_bias": {"50256": -100}}
	}`)

	var req CacheRequest
	require.NoError(t, json.Unmarshal(data, &req))

	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, "tenant-a", req.Namespace)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.5, *req.Temperature)
	require.Len(t, req.Extra, 2)
	assert.JSONEq(t, `42`, string(req.Extra["seed"]))
}

func TestPromptText(t *testing.T) {
	req := CacheRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "what is 2+2?"},
		},
	}

	assert.Equal(t, "system: be brief\nuser: what is 2+2?", req.PromptText())

	empty := CacheRequest{}
	assert.Empty(t, empty.PromptText())
}

func TestLastUserMessage(t *testing.T) {
	req := CacheRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "answer"},
			{Role: "user", Content: "second"},
		},
	}

	assert.Equal(t, "second", req.LastUserMessage())

	noUser := CacheRequest{Messages: []ChatMessage{{Role: "system", Content: "x"}}}
	assert.Empty(t, noUser.LastUserMessage())
}

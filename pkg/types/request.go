// Package types defines the normalized data structures cache operations
// work on. Requests arriving over HTTP are reduced to these shapes before
// fingerprinting so that transport noise never influences a cache key.
package types //nolint:revive // package name is intentional

import (
	"strings"

	"github.com/goccy/go-json"
)

// CacheRequest is the normalized form of an LLM request used for cache
// lookups and writes. Only semantically meaningful fields appear here;
// request IDs, timestamps, and trace headers are stripped at the API
// boundary and never reach the fingerprinter.
type CacheRequest struct {
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Namespace   string        `json:"namespace,omitempty"`

	// Extra holds additional sampling parameters that are part of the
	// request's semantics but have no dedicated field. They participate
	// in fingerprinting in sorted key order.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// ChatMessage represents a single message in the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// PromptText flattens the message contents into a single string, used as
// the text to embed for similarity matching.
func (r *CacheRequest) PromptText() string {
	var b strings.Builder
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// LastUserMessage returns the content of the most recent user turn, or the
// empty string when the conversation has none.
func (r *CacheRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

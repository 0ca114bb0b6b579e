package observability

import (
	"strings"
	"testing"
)

func TestRedactor_ProviderKeys(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		input    string
		contains string
	}{
		{"sk-1234567890abcdefghijklmnop", "[REDACTED_OPENAI_KEY]"},
		{"key: sk-proj-abcdefghijklmnopqrstuvwxyz123456", "[REDACTED_OPENAI_PROJECT_KEY]"},
		{"key: sk-ant-REDACTED", "[REDACTED_ANTHROPIC_KEY]"},
	}

	for _, tt := range tests {
		result := r.Redact(tt.input)
		if !strings.Contains(result, tt.contains) {
			t.Errorf("expected result to contain %q, got %q", tt.contains, result)
		}
	}
}

func TestRedactor_BearerToken(t *testing.T) {
	r := NewRedactor()

	input := "Bearer eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0"
	result := r.Redact(input)

	if !strings.Contains(result, "Bearer [REDACTED]") {
		t.Errorf("expected bearer token to be redacted, got %q", result)
	}
}

func TestRedactor_PII(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		input    string
		contains string
	}{
		{"user email is test@example.com", "[REDACTED_EMAIL]"},
		{"+1-555-123-4567", "[REDACTED_PHONE]"},
		{"4111-1111-1111-1111", "[REDACTED_CARD]"},
		{"SSN: 123-45-6789", "[REDACTED_SSN]"},
	}

	for _, tt := range tests {
		result := r.Redact(tt.input)
		if !strings.Contains(result, tt.contains) {
			t.Errorf("expected %q to contain %q, got %q", tt.input, tt.contains, result)
		}
	}
}

func TestRedactor_FingerprintKeysStayLegible(t *testing.T) {
	r := NewRedactor()

	input := "purged tenant-a:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	result := r.Redact(input)

	if result != input {
		t.Errorf("expected fingerprint key to pass through unchanged, got %q", result)
	}
}

func TestRedactor_AddPattern(t *testing.T) {
	r := NewRedactor()

	r.AddPattern(`SECRET_[A-Z0-9]+`, "[CUSTOM_REDACTED]", "custom")

	result := r.Redact("my secret is SECRET_ABC123")
	if !strings.Contains(result, "[CUSTOM_REDACTED]") {
		t.Errorf("expected custom pattern to be redacted, got %q", result)
	}
}

func TestRedactor_InvalidPattern(t *testing.T) {
	r := NewRedactor()

	r.AddPattern(`[invalid`, "replacement", "invalid")

	if result := r.Redact("test"); result != "test" {
		t.Errorf("expected unchanged result, got %q", result)
	}
}

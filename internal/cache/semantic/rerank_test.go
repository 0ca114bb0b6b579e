package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateStringSimilarity(t *testing.T) {
	tests := []struct {
		s1       string
		s2       string
		expected float64
	}{
		{"hello world", "hello world", 1.0},
		{"hello world", "HELLO WORLD", 1.0},
		{"hello world", "world hello", 1.0},
		{"hello world", "hello", 0.5},
		{"apple banana", "apple orange", 1.0 / 3.0},
		{"", "test", 0.0},
		{"test", "", 0.0},
	}

	for _, tt := range tests {
		score := CalculateStringSimilarity(tt.s1, tt.s2)
		assert.InDelta(t, tt.expected, score, 0.001, "failed for %q and %q", tt.s1, tt.s2)
	}
}

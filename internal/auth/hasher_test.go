package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	fullKey, hash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(fullKey, DefaultKeyPrefix))
	assert.Len(t, hash, 64)
	assert.True(t, VerifyKey(fullKey, hash))

	// Keys are unique.
	otherKey, otherHash, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, fullKey, otherKey)
	assert.NotEqual(t, hash, otherHash)
}

func TestVerifyKey(t *testing.T) {
	fullKey, hash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, VerifyKey(fullKey, hash))
	assert.False(t, VerifyKey(fullKey+"x", hash))
	assert.False(t, VerifyKey("", hash))
}

func TestParseAuthHeader(t *testing.T) {
	key, err := ParseAuthHeader("Bearer cmx_abc123")
	require.NoError(t, err)
	assert.Equal(t, "cmx_abc123", key)

	key, err = ParseAuthHeader("cmx_abc123")
	require.NoError(t, err)
	assert.Equal(t, "cmx_abc123", key)

	_, err = ParseAuthHeader("")
	require.Error(t, err)

	_, err = ParseAuthHeader("Bearer   ")
	require.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", MaskKey("short"))

	masked := MaskKey("cmx_abcdefghijklmnop")
	assert.Equal(t, "cmx_abcd...mnop", masked)
	assert.NotContains(t, masked, "efghijkl")
}

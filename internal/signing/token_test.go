package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecureTokenUniqueness(t *testing.T) {
	const n = 10000

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		token, err := NewSecureToken()
		require.NoError(t, err)
		require.Len(t, token, TokenLength)

		_, dup := seen[token]
		require.False(t, dup, "duplicate token after %d draws", i)
		seen[token] = struct{}{}
	}
}

func TestNewSecureTokenIsURLSafe(t *testing.T) {
	for i := 0; i < 100; i++ {
		token, err := NewSecureToken()
		require.NoError(t, err)
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "=")
	}
}

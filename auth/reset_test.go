package auth

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewResetToken(t *testing.T) {
	t.Parallel()

	before := time.Now()
	token, err := NewResetToken(10 * time.Minute)
	require.NoError(t, err)

	// 32 random bytes, hex encoded.
	raw, err := hex.DecodeString(token.Plain)
	require.NoError(t, err)
	require.Len(t, raw, 32)

	require.Equal(t, HashResetToken(token.Plain), token.Hash)
	require.NotEqual(t, token.Plain, token.Hash)

	require.WithinDuration(t, before.Add(10*time.Minute), token.ExpiresAt, 2*time.Second)
}

func TestNewResetTokenUnique(t *testing.T) {
	t.Parallel()

	a, err := NewResetToken(time.Minute)
	require.NoError(t, err)
	b, err := NewResetToken(time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, a.Plain, b.Plain)
}

func TestHashResetTokenDeterministic(t *testing.T) {
	t.Parallel()

	require.Equal(t, HashResetToken("abc"), HashResetToken("abc"))
	require.NotEqual(t, HashResetToken("abc"), HashResetToken("abd"))
	require.Len(t, HashResetToken("abc"), 64) // sha256 hex
}

package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost, 2)
	digest, err := h.Hash(context.Background(), "correct horse battery")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery", digest)

	require.True(t, h.Check(digest, "correct horse battery"))
	require.False(t, h.Check(digest, "wrong password"))
}

func TestHasherSaltedDigestsDiffer(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost, 1)
	a, err := h.Hash(context.Background(), "same input")
	require.NoError(t, err)
	b, err := h.Hash(context.Background(), "same input")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHasherMalformedDigest(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost, 1)
	require.False(t, h.Check("not a bcrypt digest", "anything"))
	require.False(t, h.Check("", "anything"))
}

func TestHasherCancelledContext(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost, 1)
	// Occupy the only slot so Hash has to wait on ctx.
	h.slots <- struct{}{}
	defer func() { <-h.slots }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Hash(ctx, "pw")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHasherConcurrent(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost, 2)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			digest, err := h.Hash(context.Background(), "pw")
			require.NoError(t, err)
			require.True(t, h.Check(digest, "pw"))
		}()
	}
	wg.Wait()
}

func TestHasherClampsCost(t *testing.T) {
	t.Parallel()

	h := NewHasher(99, 0)
	require.Equal(t, bcrypt.DefaultCost, h.cost)
	require.Equal(t, 1, cap(h.slots))
}

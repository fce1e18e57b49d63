package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords with bcrypt. Hashing is CPU-bound,
// so Hash acquires a slot from a bounded pool before running; concurrent
// signups cannot starve unrelated requests of CPU.
type Hasher struct {
	cost  int
	slots chan struct{}
}

func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if workers < 1 {
		workers = 1
	}
	return &Hasher{cost: cost, slots: make(chan struct{}, workers)}
}

// Hash derives a bcrypt digest of plain. It blocks until a pool slot is
// free or ctx is done.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Check reports whether plain matches digest. A malformed digest is simply
// a non-match; bcrypt's comparison is constant-time over the hash output.
func (h *Hasher) Check(digest, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResetToken is a freshly generated password-reset token. Plain is handed
// to the caller exactly once for out-of-band delivery; only Hash and
// ExpiresAt are ever persisted.
type ResetToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// NewResetToken draws 32 random bytes and returns them hex-encoded along
// with a sha256 lookup hash and an expiry of now+ttl. sha256 rather than
// bcrypt: the stored value is a lookup key for a high-entropy secret, not
// a protection for a guessable password.
func NewResetToken(ttl time.Duration) (ResetToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return ResetToken{}, err
	}
	plain := hex.EncodeToString(raw)
	return ResetToken{
		Plain:     plain,
		Hash:      HashResetToken(plain),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// HashResetToken maps a cleartext reset token to its stored form.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Package auth implements the credential primitives of the service:
// bcrypt password hashing, stateless HS256 session tokens, and single-use
// password-reset tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the verified content of a session token.
type Claims struct {
	UserID   string
	IssuedAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed session tokens. Verification is
// purely cryptographic plus an expiry check; no store lookup is involved.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl}
}

func (s *TokenService) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// Verify checks the signature before trusting any claim. Expired tokens
// yield ErrTokenExpired; anything else malformed or mis-signed yields
// ErrTokenInvalid.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return &Claims{UserID: claims.Subject, IssuedAt: claims.IssuedAt.Time}, nil
}

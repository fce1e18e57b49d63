// Package middleware implements the per-request authentication chain:
// extract token, verify, load principal, check password-change
// invalidation, then optionally authorize by role.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davrell/trekbackend/auth"
	"github.com/davrell/trekbackend/models"
)

// CookieName is the session-token cookie, mirrored by the auth controller
// when it issues tokens.
const CookieName = "jwt"

const currentUserKey = "currentUser"

// PrincipalSource loads the principal behind a verified token. Inactive
// or deleted users must not be returned.
type PrincipalSource interface {
	FindActiveByID(ctx context.Context, id string) (models.User, error)
}

// Protect rejects requests that do not carry a valid session token for an
// existing principal. On success the principal is attached to the request
// context for downstream handlers.
func Protect(tokens *auth.TokenService, users PrincipalSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authenticate(c, tokens, users)
		if !ok {
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// Optional runs the same chain but degrades to an anonymous request on
// any failure. For routes that render differently for logged-in users.
func Optional(tokens *auth.TokenService, users PrincipalSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}
		claims, err := tokens.Verify(token)
		if err != nil {
			c.Next()
			return
		}
		user, err := users.FindActiveByID(c.Request.Context(), claims.UserID)
		if err != nil || user.PasswordChangedAfter(claims.IssuedAt) {
			c.Next()
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RestrictTo authorizes the already-authenticated principal against an
// allow-set of roles. Composing it without a preceding Protect is a
// programming error and fails closed with a 500.
func RestrictTo(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "something went wrong",
			})
			return
		}
		if !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":  "fail",
				"message": "you do not have permission to perform this action",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the principal attached by Protect or Optional.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func authenticate(c *gin.Context, tokens *auth.TokenService, users PrincipalSource) (models.User, bool) {
	token := extractToken(c)
	if token == "" {
		abortUnauthorized(c, "you are not logged in, please log in to get access")
		return models.User{}, false
	}

	claims, err := tokens.Verify(token)
	if err != nil {
		abortUnauthorized(c, "invalid or expired token")
		return models.User{}, false
	}

	user, err := users.FindActiveByID(c.Request.Context(), claims.UserID)
	if err != nil {
		abortUnauthorized(c, "the user belonging to this token no longer exists")
		return models.User{}, false
	}

	// A cryptographically valid token issued before the last password
	// change is still dead: this is how outstanding sessions get revoked.
	if user.PasswordChangedAfter(claims.IssuedAt) {
		abortUnauthorized(c, "password was changed recently, please log in again")
		return models.User{}, false
	}

	return user, true
}

// extractToken prefers the Authorization header over the cookie.
func extractToken(c *gin.Context) string {
	const prefix = "Bearer "
	if header := c.GetHeader("Authorization"); len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  "fail",
		"message": msg,
	})
}

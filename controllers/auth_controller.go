package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/auth"
	"github.com/davrell/trekbackend/config"
	"github.com/davrell/trekbackend/dto"
	"github.com/davrell/trekbackend/middleware"
	"github.com/davrell/trekbackend/models"
	"github.com/davrell/trekbackend/notify"
	"github.com/davrell/trekbackend/repository"
)

// Auth handles signup, login, and the password lifecycle.
type Auth struct {
	Users    repository.UserStore
	Hasher   *auth.Hasher
	Tokens   *auth.TokenService
	Notifier notify.Notifier
	Cfg      *config.Config
}

func (a *Auth) Signup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.SignupDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidation(c, err)
			return
		}

		hash, err := a.Hasher.Hash(c.Request.Context(), body.Password)
		if err != nil {
			respondError(c, apperr.Internal(err))
			return
		}

		now := time.Now().UTC()
		user, err := a.Users.Create(c.Request.Context(), models.User{
			ID:           bson.NewObjectID(),
			Name:         body.Name,
			Email:        body.Email,
			Photo:        "default.jpg",
			PasswordHash: hash,
			Role:         models.RoleUser, // roles are never taken from input
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		if err := a.Notifier.SendWelcome(c.Request.Context(), user, requestURL(c, "/me")); err != nil {
			slog.WarnContext(c.Request.Context(), "welcome notification failed", "error", err)
		}

		a.sendToken(c, http.StatusCreated, user)
	}
}

func (a *Auth) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidation(c, err)
			return
		}

		user, err := a.Users.FindByEmail(c.Request.Context(), body.Email)
		if err != nil || !a.Hasher.Check(user.PasswordHash, body.Password) {
			// Unknown email and wrong password are indistinguishable by design.
			respondError(c, apperr.Authentication("incorrect email or password"))
			return
		}

		a.sendToken(c, http.StatusOK, user)
	}
}

// Logout overwrites the session cookie with a short-lived sentinel. The
// token itself stays cryptographically valid until expiry; stateless
// tokens have no server-side revocation list.
func (a *Auth) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     middleware.CookieName,
			Value:    "loggedout",
			Path:     "/",
			MaxAge:   10,
			HttpOnly: true,
			Secure:   a.Cfg.IsProduction(),
		})
		respondData(c, http.StatusOK, nil)
	}
}

func (a *Auth) ForgotPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ForgotPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidation(c, err)
			return
		}

		user, err := a.Users.FindByEmail(c.Request.Context(), body.Email)
		if err != nil {
			respondError(c, apperr.NotFound("there is no user with that email address"))
			return
		}

		token, err := auth.NewResetToken(a.Cfg.ResetTokenTTL)
		if err != nil {
			respondError(c, apperr.Internal(err))
			return
		}
		if err := a.Users.SetResetToken(c.Request.Context(), user.ID.Hex(), token.Hash, token.ExpiresAt); err != nil {
			respondError(c, err)
			return
		}

		resetURL := requestURL(c, "/api/v1/users/resetPassword/"+token.Plain)
		if err := a.Notifier.SendPasswordReset(c.Request.Context(), user, resetURL); err != nil {
			// The stored token must not outlive a failed delivery, or an
			// attacker who saw the cleartext could still consume it.
			if clearErr := a.Users.ClearResetToken(c.Request.Context(), user.ID.Hex()); clearErr != nil {
				slog.ErrorContext(c.Request.Context(), "reset token rollback failed", "error", clearErr)
			}
			respondError(c, apperr.Delivery("there was an error sending the email, please try again later", err))
			return
		}

		respondData(c, http.StatusOK, gin.H{"message": "token sent to email"})
	}
}

func (a *Auth) ResetPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidation(c, err)
			return
		}

		hash, err := a.Hasher.Hash(c.Request.Context(), body.Password)
		if err != nil {
			respondError(c, apperr.Internal(err))
			return
		}

		user, err := a.Users.ConsumeResetToken(
			c.Request.Context(),
			auth.HashResetToken(c.Param("token")),
			hash,
			passwordChangeStamp(),
		)
		if err != nil {
			respondError(c, apperr.Authentication("reset token is invalid or has expired"))
			return
		}

		a.sendToken(c, http.StatusOK, user)
	}
}

func (a *Auth) UpdateMyPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.UpdateMyPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidation(c, err)
			return
		}

		user, ok := middleware.CurrentUser(c)
		if !ok {
			respondError(c, apperr.Authentication("you are not logged in"))
			return
		}
		if !a.Hasher.Check(user.PasswordHash, body.PasswordCurrent) {
			respondError(c, apperr.Authentication("your current password is incorrect"))
			return
		}

		hash, err := a.Hasher.Hash(c.Request.Context(), body.Password)
		if err != nil {
			respondError(c, apperr.Internal(err))
			return
		}
		if err := a.Users.UpdatePassword(c.Request.Context(), user.ID.Hex(), hash, passwordChangeStamp()); err != nil {
			respondError(c, err)
			return
		}

		a.sendToken(c, http.StatusOK, user)
	}
}

// sendToken issues a fresh session token and delivers it in both the
// body and the cookie. Password fields never serialize.
func (a *Auth) sendToken(c *gin.Context, status int, user models.User) {
	token, err := a.Tokens.Issue(user.ID.Hex())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.Cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.Cfg.IsProduction(),
	})

	respondData(c, status, gin.H{
		"token": token,
		"data":  gin.H{"user": user},
	})
}

// passwordChangeStamp backdates the change by one second so the token
// issued in the same request (second-granularity iat) stays valid while
// every earlier token is invalidated.
func passwordChangeStamp() time.Time {
	return time.Now().UTC().Add(-time.Second)
}

func requestURL(c *gin.Context, path string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, path)
}

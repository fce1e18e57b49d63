package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/auth"
	"github.com/davrell/trekbackend/config"
	"github.com/davrell/trekbackend/middleware"
	"github.com/davrell/trekbackend/models"
	"github.com/davrell/trekbackend/repository"
)

// memUsers is an in-memory UserStore for the auth flow tests. It mirrors
// the mongo store's semantics: unique emails, active-only reads, and
// single-use reset-token consumption.
type memUsers struct {
	byID map[string]models.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]models.User{}} }

func (m *memUsers) Create(_ context.Context, user models.User) (models.User, error) {
	user.Email = repository.CanonicalEmail(user.Email)
	for _, u := range m.byID {
		if u.Email == user.Email {
			return models.User{}, apperr.Conflict("email address already in use")
		}
	}
	m.byID[user.ID.Hex()] = user
	return user, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	email = repository.CanonicalEmail(email)
	for _, u := range m.byID {
		if u.Email == email && u.Active {
			return u, nil
		}
	}
	return models.User{}, apperr.NotFound("user no longer exists")
}

func (m *memUsers) FindActiveByID(_ context.Context, id string) (models.User, error) {
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return models.User{}, apperr.NotFound("user no longer exists")
	}
	return u, nil
}

func (m *memUsers) SetResetToken(_ context.Context, id, hash string, until time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user no longer exists")
	}
	u.PasswordResetToken = hash
	u.PasswordResetUntil = &until
	m.byID[id] = u
	return nil
}

func (m *memUsers) ClearResetToken(_ context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user no longer exists")
	}
	u.PasswordResetToken = ""
	u.PasswordResetUntil = nil
	m.byID[id] = u
	return nil
}

func (m *memUsers) ConsumeResetToken(_ context.Context, hash, newPasswordHash string, changedAt time.Time) (models.User, error) {
	now := time.Now()
	for id, u := range m.byID {
		if u.PasswordResetToken != hash || !u.Active {
			continue
		}
		if u.ResetTokenExpired(now) {
			break
		}
		u.PasswordHash = newPasswordHash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetToken = ""
		u.PasswordResetUntil = nil
		m.byID[id] = u
		return u, nil
	}
	return models.User{}, apperr.NotFound("reset token is invalid or has expired")
}

func (m *memUsers) UpdatePassword(_ context.Context, id, newPasswordHash string, changedAt time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user no longer exists")
	}
	u.PasswordHash = newPasswordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetUntil = nil
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, patch bson.M) (models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, apperr.NotFound("user no longer exists")
	}
	return u, nil
}

func (m *memUsers) Deactivate(_ context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user no longer exists")
	}
	u.Active = false
	m.byID[id] = u
	return nil
}

// recordingNotifier captures outbound notifications and can be told to
// fail deliveries.
type recordingNotifier struct {
	resetURL string
	fail     bool
}

func (n *recordingNotifier) SendWelcome(context.Context, models.User, string) error { return nil }

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ models.User, url string) error {
	if n.fail {
		return errors.New("smtp connection refused")
	}
	n.resetURL = url
	return nil
}

type authFixture struct {
	router   *gin.Engine
	store    *memUsers
	notifier *recordingNotifier
	tokens   *auth.TokenService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := &config.Config{
		Env:           "test",
		TokenTTL:      time.Hour,
		CookieTTL:     24 * time.Hour,
		ResetTokenTTL: 10 * time.Minute,
	}
	store := newMemUsers()
	notifier := &recordingNotifier{}
	tokens := auth.NewTokenService([]byte("test-secret"), cfg.TokenTTL)
	ctl := &Auth{
		Users:    store,
		Hasher:   auth.NewHasher(bcrypt.MinCost, 2),
		Tokens:   tokens,
		Notifier: notifier,
		Cfg:      cfg,
	}

	r := gin.New()
	r.POST("/api/v1/users/signup", ctl.Signup())
	r.POST("/api/v1/users/login", ctl.Login())
	r.GET("/api/v1/users/logout", ctl.Logout())
	r.POST("/api/v1/users/forgotPassword", ctl.ForgotPassword())
	r.PATCH("/api/v1/users/resetPassword/:token", ctl.ResetPassword())
	r.PATCH("/api/v1/users/updateMyPassword", middleware.Protect(tokens, store), ctl.UpdateMyPassword())

	return &authFixture{router: r, store: store, notifier: notifier, tokens: tokens}
}

func (f *authFixture) do(method, url, body, bearer string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *authFixture) signup(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"name":"Asta","email":"` + email + `","password":"` + password + `","passwordConfirm":"` + password + `"}`
	return f.do(http.MethodPost, "/api/v1/users/signup", body, "")
}

func tokenFromBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSignupIssuesTokenAndHidesPassword(t *testing.T) {
	f := newAuthFixture(t)

	w := f.signup(t, "a@x.com", "longpassword1")
	require.Equal(t, http.StatusCreated, w.Code)

	token := tokenFromBody(t, w)
	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	_, err = f.store.FindActiveByID(context.Background(), claims.UserID)
	require.NoError(t, err)

	body := strings.ToLower(w.Body.String())
	assert.NotContains(t, body, "password")
	assert.Contains(t, w.Body.String(), "a@x.com")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)

	require.Equal(t, http.StatusCreated, f.signup(t, "a@x.com", "longpassword1").Code)
	assert.Equal(t, http.StatusConflict, f.signup(t, "A@X.com", "otherpassword2").Code)
}

func TestSignupNeverAcceptsRole(t *testing.T) {
	f := newAuthFixture(t)

	body := `{"name":"Mallory","email":"m@x.com","password":"longpassword1","passwordConfirm":"longpassword1","role":"admin"}`
	w := f.do(http.MethodPost, "/api/v1/users/signup", body, "")
	require.Equal(t, http.StatusCreated, w.Code)

	user, err := f.store.FindByEmail(context.Background(), "m@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "a@x.com", "longpassword1")

	w := f.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"wrongpassword"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown email reads exactly like a wrong password.
	w2 := f.do(http.MethodPost, "/api/v1/users/login", `{"email":"nobody@x.com","password":"longpassword1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Equal(t, w.Body.String(), w2.Body.String())

	w = f.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"longpassword1"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	tokenFromBody(t, w)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "a@x.com", "longpassword1")

	w := f.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"a@x.com"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, f.notifier.resetURL)
	resetToken := path.Base(f.notifier.resetURL)

	// The cleartext never touches the store; only its hash does.
	user, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.HashResetToken(resetToken), user.PasswordResetToken)
	require.NotNil(t, user.PasswordResetUntil)

	newPass := `{"password":"brandnewpassword","passwordConfirm":"brandnewpassword"}`
	w = f.do(http.MethodPatch, "/api/v1/users/resetPassword/"+resetToken, newPass, "")
	require.Equal(t, http.StatusOK, w.Code)
	tokenFromBody(t, w)

	// Single use: the same token is dead now.
	w = f.do(http.MethodPatch, "/api/v1/users/resetPassword/"+resetToken, newPass, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The new password works, the old one does not.
	w = f.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"brandnewpassword"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"longpassword1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResetTokenExpiry(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "a@x.com", "longpassword1")

	w := f.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"a@x.com"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	resetToken := path.Base(f.notifier.resetURL)

	// Age the token past its window.
	user, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, f.store.SetResetToken(context.Background(), user.ID.Hex(), user.PasswordResetToken, expired))

	body := `{"password":"brandnewpassword","passwordConfirm":"brandnewpassword"}`
	w = f.do(http.MethodPatch, "/api/v1/users/resetPassword/"+resetToken, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotPasswordRollsBackOnDeliveryFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "a@x.com", "longpassword1")
	f.notifier.fail = true

	w := f.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"a@x.com"}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "smtp")

	// The half-issued token must not survive the failed delivery.
	user, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, user.PasswordResetToken)
	assert.Nil(t, user.PasswordResetUntil)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	w := f.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"ghost@x.com"}`, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMyPassword(t *testing.T) {
	f := newAuthFixture(t)
	w := f.signup(t, "a@x.com", "longpassword1")
	token := tokenFromBody(t, w)

	body := `{"passwordCurrent":"wrongpassword","password":"freshpassword1","passwordConfirm":"freshpassword1"}`
	w = f.do(http.MethodPatch, "/api/v1/users/updateMyPassword", body, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body = `{"passwordCurrent":"longpassword1","password":"freshpassword1","passwordConfirm":"freshpassword1"}`
	w = f.do(http.MethodPatch, "/api/v1/users/updateMyPassword", body, token)
	require.Equal(t, http.StatusOK, w.Code)
	tokenFromBody(t, w)

	user, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.PasswordChangedAt)

	w = f.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"freshpassword1"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutOverwritesCookie(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(http.MethodGet, "/api/v1/users/logout", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.CookieName, cookies[0].Name)
	assert.Equal(t, "loggedout", cookies[0].Value)
	assert.LessOrEqual(t, cookies[0].MaxAge, 10)
}

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/config"
	"github.com/openincube/platform/internal/dbx"
	"github.com/openincube/platform/internal/middleware"
	"github.com/openincube/platform/internal/model"
	"github.com/openincube/platform/internal/repository"
	"github.com/openincube/platform/internal/service"
)

// In-memory stores backing a real Authenticator, so the handler tests
// exercise the full login/refresh/reset flow without a database.

type memUsers struct {
	byEmail map[string]*model.User
	nextID  uint64
}

func newMemUsers() *memUsers { return &memUsers{byEmail: map[string]*model.User{}, nextID: 1} }

func (m *memUsers) add(u model.User) *model.User {
	u.ID = m.nextID
	m.nextID++
	m.byEmail[u.Email] = &u
	return &u
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (m *memUsers) Create(_ context.Context, email, password, fullName string, role model.Role, tenantID string, cost int) (uint64, error) {
	if _, ok := m.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	u := m.add(model.User{Email: email, PasswordHash: hash, FullName: fullName, Role: role, TenantID: tenantID, IsActive: true})
	return u.ID, nil
}

func (m *memUsers) CountSuperAdmins(_ context.Context) (int, error) {
	n := 0
	for _, u := range m.byEmail {
		if u.Role == model.RoleSuperAdmin {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, _ dbx.DBTX, userID uint64, hash string) error {
	for _, u := range m.byEmail {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return sql.ErrNoRows
}

type refreshRow struct {
	userID uint64
	exp    time.Time
}

type memRefresh struct {
	byHash map[string]refreshRow
	byUser map[uint64]string
}

func newMemRefresh() *memRefresh {
	return &memRefresh{byHash: map[string]refreshRow{}, byUser: map[uint64]string{}}
}

func (m *memRefresh) IssueOrRotate(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	if old, ok := m.byUser[userID]; ok {
		delete(m.byHash, old)
	}
	m.byUser[userID] = tokenHash
	m.byHash[tokenHash] = refreshRow{userID: userID, exp: exp}
	return nil
}

func (m *memRefresh) Redeem(_ context.Context, tokenHash string) (uint64, error) {
	row, ok := m.byHash[tokenHash]
	if !ok || time.Now().UTC().After(row.exp) {
		delete(m.byHash, tokenHash)
		return 0, repository.ErrRefreshTokenInvalid
	}
	delete(m.byHash, tokenHash)
	delete(m.byUser, row.userID)
	return row.userID, nil
}

func (m *memRefresh) Revoke(_ context.Context, _ dbx.DBTX, userID uint64) error {
	if h, ok := m.byUser[userID]; ok {
		delete(m.byHash, h)
		delete(m.byUser, userID)
	}
	return nil
}

type memResets struct {
	byHash map[string]*model.PasswordResetToken
}

func newMemResets() *memResets { return &memResets{byHash: map[string]*model.PasswordResetToken{}} }

func (m *memResets) Replace(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	for h, t := range m.byHash {
		if t.UserID == userID {
			delete(m.byHash, h)
		}
	}
	m.byHash[tokenHash] = &model.PasswordResetToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp}
	return nil
}

func (m *memResets) Get(_ context.Context, tokenHash string) (model.PasswordResetToken, error) {
	t, ok := m.byHash[tokenHash]
	if !ok {
		return model.PasswordResetToken{}, repository.ErrResetTokenInvalid
	}
	return *t, nil
}

func (m *memResets) Consume(_ context.Context, _ dbx.DBTX, tokenHash string) error {
	t, ok := m.byHash[tokenHash]
	if !ok || t.Used || time.Now().UTC().After(t.ExpiresAt) {
		return repository.ErrResetTokenExpiredOrUsed
	}
	t.Used = true
	return nil
}

func (m *memResets) Validate(_ context.Context, tokenHash string) error {
	t, ok := m.byHash[tokenHash]
	if !ok {
		return repository.ErrResetTokenInvalid
	}
	if t.Used || time.Now().UTC().After(t.ExpiresAt) {
		return repository.ErrResetTokenExpiredOrUsed
	}
	return nil
}

type capturedMail struct {
	email, name, url string
}

type memSender struct{ sent []capturedMail }

func (m *memSender) SendPasswordReset(_ context.Context, email, name, resetURL string) error {
	m.sent = append(m.sent, capturedMail{email, name, resetURL})
	return nil
}

// authStack is a full echo app over the in-memory stores.
type authStack struct {
	e      *echo.Echo
	users  *memUsers
	sender *memSender
	mock   sqlmock.Sqlmock
}

func newAuthStack(t *testing.T) *authStack {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		BaseURL:        "https://app.test",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		ResetTTLHours:  24,
		BcryptCost:     4,
	}
	users := newMemUsers()
	sender := &memSender{}
	codec := auth.NewCodec("handler-secret", cfg.AccessTTLMin)
	authr := service.NewAuthenticator(cfg, db, users, newMemRefresh(), newMemResets(), sender, codec)
	h := NewAuthHandler(authr)

	e := echo.New()
	e.Use(middleware.Authenticate(codec, authr))
	e.Use(middleware.NewPolicy([]string{"/v1/auth/"}, nil).Middleware())
	g := e.Group("/v1/auth")
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.POST("/setup", h.Setup)
	g.POST("/password/forgot", h.Forgot)
	g.POST("/password/reset", h.Reset)
	g.GET("/password/validate-token", h.ValidateToken)
	e.GET("/v1/me", h.Me)

	return &authStack{e: e, users: users, sender: sender, mock: mock}
}

func (s *authStack) seedUser(t *testing.T, email, password string, role model.Role, tenant string) model.User {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	u := s.users.add(model.User{Email: email, PasswordHash: hash, FullName: "Test User", Role: role, TenantID: tenant, IsActive: true})
	return *u
}

func (s *authStack) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestLoginMeRefreshReplayFlow(t *testing.T) {
	s := newAuthStack(t)
	s.seedUser(t, "ada@acme.test", "s3cret", model.RoleTenantAdmin, "tenant-a")

	// Login.
	rec := s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "Ada@Acme.TEST", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login authResp
	decode(t, rec, &login)
	assert.Equal(t, "ada@acme.test", login.User.Email)
	assert.Equal(t, "TENANT_ADMIN", login.User.Role)
	assert.NotEmpty(t, login.Access.Token)
	assert.Len(t, login.Refresh.Token, 96)

	// The access token authenticates /v1/me.
	rec = s.do(http.MethodGet, "/v1/me", login.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	decode(t, rec, &me)
	assert.Equal(t, "ada@acme.test", me["email"])
	assert.Equal(t, "tenant-a", me["tenant_id"])

	// Refresh rotates the pair.
	rec = s.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": login.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed authResp
	decode(t, rec, &refreshed)
	assert.NotEqual(t, login.Refresh.Token, refreshed.Refresh.Token)

	// Replaying the redeemed token fails.
	rec = s.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": login.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The rotated token still works.
	rec = s.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": refreshed.Refresh.Token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_BadCredentialsAreGeneric401(t *testing.T) {
	s := newAuthStack(t)
	s.seedUser(t, "ada@acme.test", "s3cret", model.RoleStartup, "tenant-a")

	for name, body := range map[string]echo.Map{
		"unknown email":  {"email": "ghost@acme.test", "password": "s3cret"},
		"wrong password": {"email": "ada@acme.test", "password": "nope"},
	} {
		rec := s.do(http.MethodPost, "/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "invalid credentials", name)
	}
}

func TestMe_WithoutTokenIs401(t *testing.T) {
	s := newAuthStack(t)
	rec := s.do(http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	s := newAuthStack(t)
	s.seedUser(t, "ada@acme.test", "s3cret", model.RoleStartup, "tenant-a")

	rec := s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "ada@acme.test", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authResp
	decode(t, rec, &login)

	rec = s.do(http.MethodPost, "/v1/auth/logout", login.Access.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": login.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotAndResetFlow(t *testing.T) {
	s := newAuthStack(t)
	s.seedUser(t, "ada@acme.test", "old-pass", model.RoleStartup, "tenant-a")

	// Unknown email gets the same 200 and sends nothing.
	rec := s.do(http.MethodPost, "/v1/auth/password/forgot", "", echo.Map{"email": "ghost@acme.test"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.sender.sent)

	rec = s.do(http.MethodPost, "/v1/auth/password/forgot", "", echo.Map{"email": "ada@acme.test"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.sender.sent, 1)
	mailURL := s.sender.sent[0].url
	require.True(t, strings.HasPrefix(mailURL, "https://app.test/reset-password?token="))
	raw := strings.TrimPrefix(mailURL, "https://app.test/reset-password?token=")

	// The mailed token validates.
	rec = s.do(http.MethodGet, "/v1/auth/password/validate-token?token="+raw, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "true")

	// Reset commits inside one transaction.
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()
	rec = s.do(http.MethodPost, "/v1/auth/password/reset", "", echo.Map{"token": raw, "new_password": "new-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, s.mock.ExpectationsWereMet())

	// The token is single use.
	rec = s.do(http.MethodPost, "/v1/auth/password/reset", "", echo.Map{"token": raw, "new_password": "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired or already used")

	// Old password is dead, new one works.
	rec = s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "ada@acme.test", "password": "old-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "ada@acme.test", "password": "new-pass"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReset_UnknownTokenIsInvalid(t *testing.T) {
	s := newAuthStack(t)
	rec := s.do(http.MethodPost, "/v1/auth/password/reset", "", echo.Map{"token": "bogus", "new_password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestSetup_BootstrapThenClosed(t *testing.T) {
	s := newAuthStack(t)

	rec := s.do(http.MethodPost, "/v1/auth/setup", "", echo.Map{
		"email": "root@acme.test", "password": "s3cret", "full_name": "Root",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created authResp
	decode(t, rec, &created)
	assert.Equal(t, "SUPER_ADMIN", created.User.Role)
	assert.Empty(t, created.User.TenantID)

	rec = s.do(http.MethodPost, "/v1/auth/setup", "", echo.Map{
		"email": "root2@acme.test", "password": "s3cret", "full_name": "Root 2",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

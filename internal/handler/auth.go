package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/metrics"
	"github.com/openincube/platform/internal/middleware"
	"github.com/openincube/platform/internal/repository"
	"github.com/openincube/platform/internal/service"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth *service.Authenticator
}

func NewAuthHandler(a *service.Authenticator) *AuthHandler { return &AuthHandler{Auth: a} }

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
type setupReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	SetupToken string `json:"setup_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func sessionResp(s *service.Session) authResp {
	return authResp{
		User: userPart{
			ID:       s.User.ID,
			Email:    s.User.Email,
			FullName: s.User.FullName,
			Role:     s.User.Role.String(),
			TenantID: s.User.TenantID,
		},
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw goes back to the client once
	}
}

// Login verifies credentials and returns a fresh token pair. Every failure
// is the same generic 401 regardless of cause.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh redeems a refresh token for a new pair. The redeemed value is
// rotated away and rejected on any replay.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenInvalid) {
			metrics.TokenRefreshes.WithLabelValues("failure").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Logout revokes the caller's refresh token. Requires an authenticated
// request; the access token simply ages out.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, id.UserID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Setup bootstraps the first SUPER_ADMIN account. Open only while no super
// admin exists, or with the configured setup token afterwards.
func (h *AuthHandler) Setup(c echo.Context) error {
	var req setupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.BootstrapSuperAdmin(ctx, req.Email, req.Password, req.FullName, req.SetupToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSetupClosed):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "setup closed"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "setup failed"})
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// Forgot starts the password-reset flow. It answers 200 whether or not the
// email exists, so account presence never leaks.
func (h *AuthHandler) Forgot(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.RequestPasswordReset(ctx, strings.TrimSpace(req.Email)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	metrics.PasswordResets.WithLabelValues("requested").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, an email has been sent"})
}

// Reset consumes a reset token and sets a new password. Unlike login, the
// failure reason is disclosed here: only the token is at stake, never an
// email address.
func (h *AuthHandler) Reset(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and new_password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, repository.ErrResetTokenInvalid):
			metrics.PasswordResets.WithLabelValues("rejected").Inc()
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token"})
		case errors.Is(err, repository.ErrResetTokenExpiredOrUsed):
			metrics.PasswordResets.WithLabelValues("rejected").Inc()
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "token expired or already used"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	metrics.PasswordResets.WithLabelValues("completed").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// ValidateToken lets a client check a reset token before rendering the
// form. Same predicate as Reset, read-only.
func (h *AuthHandler) ValidateToken(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.ValidateResetToken(ctx, raw); err != nil {
		if errors.Is(err, repository.ErrResetTokenInvalid) || errors.Is(err, repository.ErrResetTokenExpiredOrUsed) {
			return c.JSON(http.StatusBadRequest, echo.Map{"valid": false})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// Me echoes the identity the gate established.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":   id.UserID,
		"email":     id.Email,
		"role":      id.Role.String(),
		"tenant_id": id.TenantID,
	})
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

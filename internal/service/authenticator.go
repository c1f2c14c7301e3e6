// Package service contains the authentication orchestration: credential
// verification, token pair issuance, refresh rotation and the password
// reset flow.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/config"
	"github.com/openincube/platform/internal/dbx"
	"github.com/openincube/platform/internal/model"
	"github.com/openincube/platform/internal/repository"
)

// ErrAuthenticationFailed is the single failure every bad login collapses
// into. Unknown email, wrong password and deactivated account are
// indistinguishable to the caller.
var ErrAuthenticationFailed = errors.New("authentication failed")

// ErrSetupClosed is returned by the bootstrap endpoint once a SUPER_ADMIN
// exists and no matching setup token was presented.
var ErrSetupClosed = errors.New("setup closed")

// UserStore is the credential-store surface the Authenticator consumes.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Create(ctx context.Context, email, password, fullName string, role model.Role, tenantID string, cost int) (uint64, error)
	CountSuperAdmins(ctx context.Context) (int, error)
	UpdatePassword(ctx context.Context, q dbx.DBTX, userID uint64, passwordHash string) error
}

// RefreshStore is the refresh-token ledger surface.
type RefreshStore interface {
	IssueOrRotate(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Redeem(ctx context.Context, tokenHash string) (uint64, error)
	Revoke(ctx context.Context, q dbx.DBTX, userID uint64) error
}

// ResetStore is the password-reset ledger surface.
type ResetStore interface {
	Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Get(ctx context.Context, tokenHash string) (model.PasswordResetToken, error)
	Consume(ctx context.Context, q dbx.DBTX, tokenHash string) error
	Validate(ctx context.Context, tokenHash string) error
}

// NotificationSender delivers the reset link out of band. Implementations
// are fire-and-forget; the Authenticator logs failures and never surfaces
// them to the requester.
type NotificationSender interface {
	SendPasswordReset(ctx context.Context, email, name, resetURL string) error
}

// Session is the result of a successful authentication: the user's profile
// plus a fresh access/refresh pair.
type Session struct {
	User    model.User
	Access  auth.AccessToken
	Refresh auth.OpaqueToken
}

// Authenticator wires the codec, ledgers and credential store together.
type Authenticator struct {
	db      *sql.DB
	users   UserStore
	refresh RefreshStore
	resets  ResetStore
	notify  NotificationSender
	codec   *auth.Codec

	refreshTTL time.Duration
	resetTTL   time.Duration
	bcryptCost int
	setupToken string
	baseURL    string
}

// NewAuthenticator builds an Authenticator from the shared config and the
// store implementations.
func NewAuthenticator(cfg config.Config, db *sql.DB, users UserStore, refresh RefreshStore, resets ResetStore, notify NotificationSender, codec *auth.Codec) *Authenticator {
	return &Authenticator{
		db:         db,
		users:      users,
		refresh:    refresh,
		resets:     resets,
		notify:     notify,
		codec:      codec,
		refreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		resetTTL:   time.Duration(cfg.ResetTTLHours) * time.Hour,
		bcryptCost: cfg.BcryptCost,
		setupToken: cfg.SetupToken,
		baseURL:    cfg.BaseURL,
	}
}

// Authenticate verifies email/password and returns a new session. Every
// failure path returns ErrAuthenticationFailed with no distinguishing
// detail.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrAuthenticationFailed
	}
	if !u.IsActive {
		return nil, ErrAuthenticationFailed
	}
	return a.issueSession(ctx, u)
}

// BootstrapSuperAdmin creates the first privileged account and logs it in.
// The endpoint is open only while no SUPER_ADMIN exists; afterwards it
// requires the configured SETUP_TOKEN, and with none configured it is
// closed for good.
func (a *Authenticator) BootstrapSuperAdmin(ctx context.Context, email, password, fullName, setupToken string) (*Session, error) {
	n, err := a.users.CountSuperAdmins(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && (a.setupToken == "" || setupToken != a.setupToken) {
		return nil, ErrSetupClosed
	}
	id, err := a.users.Create(ctx, email, password, fullName, model.RoleSuperAdmin, "", a.bcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := a.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.issueSession(ctx, u)
}

// Refresh redeems a refresh token and returns a brand-new pair. The
// redeemed value is invalid from this point on (rotation); a replay of it
// fails.
func (a *Authenticator) Refresh(ctx context.Context, rawRefresh string) (*Session, error) {
	userID, err := a.refresh.Redeem(ctx, auth.HashToken(rawRefresh))
	if err != nil {
		return nil, err
	}
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, repository.ErrRefreshTokenInvalid
	}
	return a.issueSession(ctx, u)
}

// Logout revokes the user's refresh token. The access token keeps working
// until its short TTL runs out; there is deliberately no server-side
// access-token state to clear.
func (a *Authenticator) Logout(ctx context.Context, userID uint64) error {
	return a.refresh.Revoke(ctx, a.db, userID)
}

// RequestPasswordReset starts the reset flow. From the caller's view it
// always succeeds; an unknown email creates no token and sends nothing,
// and notification failures are logged, never surfaced.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	tok, err := auth.NewOpaqueToken(a.resetTTL)
	if err != nil {
		return err
	}
	if err := a.resets.Replace(ctx, u.ID, auth.HashToken(tok.Raw), tok.Exp); err != nil {
		return err
	}
	resetURL := a.baseURL + "/reset-password?token=" + url.QueryEscape(tok.Raw)
	if err := a.notify.SendPasswordReset(ctx, u.Email, u.FullName, resetURL); err != nil {
		log.Printf("auth: password reset notification for user %d failed: %v", u.ID, err)
	}
	return nil
}

// ResetPassword consumes a reset token and rewrites the user's password.
// The token flip, the password write and the session revocation commit as
// one transaction, so a crash can never leave a consumed token reusable or
// a half-applied password.
func (a *Authenticator) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	hash := auth.HashToken(rawToken)
	t, err := a.resets.Get(ctx, hash)
	if err != nil {
		return err
	}
	if t.Used || time.Now().UTC().After(t.ExpiresAt) {
		return repository.ErrResetTokenExpiredOrUsed
	}
	pwHash, err := auth.HashPassword(newPassword, a.bcryptCost)
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.resets.Consume(ctx, tx, hash); err != nil {
			return err
		}
		if err := a.users.UpdatePassword(ctx, tx, t.UserID, pwHash); err != nil {
			return err
		}
		// A password change ends every existing session.
		return a.refresh.Revoke(ctx, tx, t.UserID)
	})
}

// ValidateResetToken applies the same predicate as ResetPassword without
// consuming anything.
func (a *Authenticator) ValidateResetToken(ctx context.Context, rawToken string) error {
	return a.resets.Validate(ctx, auth.HashToken(rawToken))
}

// ResolveActiveSubject maps an access-token subject back onto a live user.
// The gates call it to confirm a token has not outlived its account's
// deactivation.
func (a *Authenticator) ResolveActiveSubject(ctx context.Context, email string) (model.User, error) {
	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, ErrAuthenticationFailed
	}
	return u, nil
}

func (a *Authenticator) issueSession(ctx context.Context, u model.User) (*Session, error) {
	access, err := a.codec.Issue(u)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.NewOpaqueToken(a.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := a.refresh.IssueOrRotate(ctx, u.ID, auth.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

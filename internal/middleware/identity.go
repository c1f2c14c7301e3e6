package middleware

// identity.go defines the authenticated caller's identity and how it
// travels through a request. Identity is attached explicitly to the Echo
// context by the gate; nothing in the codebase reads authentication state
// from a global.

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/model"
	"github.com/openincube/platform/internal/repository"
)

// Identity is the validated (subject, role, tenant) triple every
// downstream component consumes. It exists only for requests whose bearer
// token survived the gate.
type Identity struct {
	UserID   uint64
	Email    string
	Role     model.Role
	TenantID string
}

// Scope translates the identity into the data-layer visibility rule:
// SUPER_ADMIN sees everything, everyone else only their own tenant.
func (id *Identity) Scope() repository.Scope {
	if id.Role == model.RoleSuperAdmin {
		return repository.Scope{All: true}
	}
	return repository.Scope{TenantID: id.TenantID}
}

const identityKey = "identity"

// SetIdentity attaches the identity to the request context.
func SetIdentity(c echo.Context, id *Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the request's identity, if the gate established one.
func IdentityFrom(c echo.Context) (*Identity, bool) {
	id, ok := c.Get(identityKey).(*Identity)
	return id, ok && id != nil
}

// SubjectResolver re-confirms that a token subject still maps to an active
// account. Implemented by service.Authenticator.
type SubjectResolver interface {
	ResolveActiveSubject(ctx context.Context, email string) (model.User, error)
}

// ResolveIdentity validates a raw access token and maps it to an Identity.
// It is the single validation path shared by the HTTP gate and the
// websocket handshake. The boolean is false for any failure; the reason is
// deliberately not reported.
func ResolveIdentity(ctx context.Context, codec *auth.Codec, resolver SubjectResolver, raw string) (*Identity, bool) {
	claims, err := codec.Parse(raw)
	if err != nil {
		return nil, false
	}
	// Tokens can outlive an account's deactivation inside their own TTL;
	// the live check closes that window.
	u, err := resolver.ResolveActiveSubject(ctx, claims.Subject)
	if err != nil {
		return nil, false
	}
	return &Identity{UserID: u.ID, Email: u.Email, Role: u.Role, TenantID: u.TenantID}, true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	return raw, raw != ""
}

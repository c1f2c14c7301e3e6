// Package auth provides the access-token codec, password hashing and the
// opaque token values used by the refresh and reset ledgers.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openincube/platform/internal/model"
)

var (
	// ErrMalformedToken covers structurally invalid tokens, wrong signing
	// algorithms and signature mismatches.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned for a well-signed token whose expiry has
	// passed. Callers must collapse both errors to "unauthenticated" before
	// anything reaches a client.
	ErrExpiredToken = errors.New("expired token")
)

// Claims is the payload of an access token. Subject carries the user's
// email; role and tenant id ride along so authorization never needs a
// database round trip.
type Claims struct {
	UserID   uint64 `json:"uid"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT plus its expiry, as handed back to clients.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// Codec signs and verifies access tokens with a single process-wide HS256
// secret. Rotating the secret invalidates every outstanding token; the
// refresh flow re-establishes sessions afterwards. The codec is stateless
// and safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec builds a Codec from the configured signing secret and access
// token TTL in minutes.
func NewCodec(secret string, ttlMin int) *Codec {
	return &Codec{secret: []byte(secret), ttl: time.Duration(ttlMin) * time.Minute}
}

// Issue signs a short-lived token for u. The subject claim is the email.
func (c *Codec) Issue(u model.User) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(c.ttl)
	claims := Claims{
		UserID:   u.ID,
		Role:     u.Role.String(),
		TenantID: u.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
// Failures are reduced to ErrExpiredToken or ErrMalformedToken so callers
// cannot accidentally leak a more detailed reason.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrMalformedToken
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrMalformedToken
	}
	if !tok.Valid {
		return nil, ErrMalformedToken
	}
	if _, ok := model.ParseRole(claims.Role); !ok {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// IsValid reports whether raw is a live token issued to expectedSubject.
func (c *Codec) IsValid(raw, expectedSubject string) bool {
	claims, err := c.Parse(raw)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

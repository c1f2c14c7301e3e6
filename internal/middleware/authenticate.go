package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/auth"
)

// Authenticate is the per-request authentication gate. It never rejects:
// a missing, malformed or expired bearer token simply leaves the request
// unauthenticated and the policy layer decides whether that matters for
// the route. This keeps public routes working even when a client sends a
// stale Authorization header.
func Authenticate(codec *auth.Codec, resolver SubjectResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return next(c)
			}
			if id, ok := ResolveIdentity(c.Request().Context(), codec, resolver, raw); ok {
				SetIdentity(c, id)
			}
			return next(c)
		}
	}
}

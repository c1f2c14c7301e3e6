// Package router wires HTTP routes, the authentication gate and the
// authorization policy onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/config"
	"github.com/openincube/platform/internal/handler"
	"github.com/openincube/platform/internal/metrics"
	"github.com/openincube/platform/internal/middleware"
	"github.com/openincube/platform/internal/model"
	"github.com/openincube/platform/internal/realtime"
)

// NewPolicy builds the platform's authorization table. Paths on the public
// allow-list skip identity checks entirely; the websocket endpoint is
// listed because its gate runs at handshake time, inside the handler. Any
// protected path without a specific rule requires an authenticated caller
// of any role.
func NewPolicy() *middleware.Policy {
	public := []string{
		"/healthz",
		"/metrics",
		"/v1/auth/",
		"/v1/ws",
	}
	rules := []middleware.Rule{
		{Prefix: "/v1/admin", Roles: []model.Role{model.RoleSuperAdmin}},
		{Prefix: "/v1/cohorts", Roles: []model.Role{
			model.RoleSuperAdmin, model.RoleTenantAdmin, model.RoleStartup,
			model.RoleMentor, model.RoleInvestor, model.RoleAlumni,
		}},
	}
	return middleware.NewPolicy(public, rules)
}

// Register mounts every route. The gate and policy middlewares are applied
// globally: the gate attaches identity when a valid bearer is present, the
// policy decides whether the route needs one.
func Register(
	e *echo.Echo,
	codec *auth.Codec,
	resolver middleware.SubjectResolver,
	rdb *redis.Client,
	a *handler.AuthHandler,
	cohorts *handler.CohortHandler,
	tenants *handler.TenantHandler,
	hub *realtime.Hub,
) {
	e.Use(middleware.Authenticate(codec, resolver))
	e.Use(NewPolicy().Middleware())

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", metrics.Handler())

	// Credential-sensitive endpoints sit behind the Redis token bucket.
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limiter)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/setup", a.Setup)
	g.POST("/password/forgot", a.Forgot, limiter)
	g.POST("/password/reset", a.Reset)
	g.GET("/password/validate-token", a.ValidateToken)

	e.GET("/v1/me", a.Me)

	e.GET("/v1/cohorts", cohorts.List)
	e.GET("/v1/cohorts/:id", cohorts.Get)
	e.POST("/v1/cohorts", cohorts.Create,
		middleware.RequireRole(model.RoleSuperAdmin, model.RoleTenantAdmin))

	admin := e.Group("/v1/admin")
	admin.POST("/tenants", tenants.Create)
	admin.GET("/tenants/:id", tenants.Get)

	e.GET("/v1/ws", hub.Handler(codec, resolver))
}

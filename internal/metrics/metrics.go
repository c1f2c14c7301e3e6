// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login calls by outcome (success|failure|error).
	// Failures are not broken down further; the indistinguishability of
	// failure reasons extends to the metrics surface.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// TokenRefreshes counts refresh redemptions by outcome.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_refreshes_total",
		Help: "Refresh token redemptions by outcome.",
	}, []string{"outcome"})

	// PasswordResets counts reset-flow stages (requested|completed|rejected).
	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_password_resets_total",
		Help: "Password reset flow events by stage.",
	}, []string{"stage"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

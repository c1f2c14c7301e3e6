package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/model"
)

// Rule permits a set of roles on every path under Prefix.
type Rule struct {
	Prefix string
	Roles  []model.Role
}

// Policy is the static authorization table consulted once per request,
// after the gate has (or has not) established an identity. Matching order:
// public allow-list first, then the most specific rule prefix, then the
// default of "authenticated, any role".
type Policy struct {
	public []string
	rules  []Rule
}

// NewPolicy builds a policy from the public allow-list and the rule table.
func NewPolicy(public []string, rules []Rule) *Policy {
	return &Policy{public: public, rules: rules}
}

// Middleware enforces the policy. 401 for protected routes with no
// identity, 403 for an identity whose role is outside the matched rule.
func (p *Policy) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if p.isPublic(path) {
				return next(c)
			}
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if rule := p.match(path); rule != nil && !roleAllowed(rule.Roles, id.Role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

func (p *Policy) isPublic(path string) bool {
	for _, pre := range p.public {
		if strings.HasPrefix(path, pre) {
			return true
		}
	}
	return false
}

// match returns the longest rule prefix covering path, or nil when only
// the default applies.
func (p *Policy) match(path string) *Rule {
	var best *Rule
	for i := range p.rules {
		r := &p.rules[i]
		if !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		if best == nil || len(r.Prefix) > len(best.Prefix) {
			best = r
		}
	}
	return best
}

func roleAllowed(roles []model.Role, r model.Role) bool {
	for _, allowed := range roles {
		if allowed == r {
			return true
		}
	}
	return false
}

// RequireRole tightens a single route beyond the prefix table. It assumes
// the gate already ran.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !roleAllowed(roles, id.Role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

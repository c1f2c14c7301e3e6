package model

// Role is the closed set of account roles understood by the platform.
// Authorization decisions are made exclusively against these values; an
// unknown string coming out of a token or the database never matches any
// policy rule.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"  // global operator, exempt from tenant scoping
	RoleTenantAdmin Role = "TENANT_ADMIN" // manages a single incubator tenant
	RoleStartup     Role = "STARTUP"
	RoleMentor      Role = "MENTOR"
	RoleInvestor    Role = "INVESTOR"
	RoleAlumni      Role = "ALUMNI"
)

var allRoles = map[Role]bool{
	RoleSuperAdmin:  true,
	RoleTenantAdmin: true,
	RoleStartup:     true,
	RoleMentor:      true,
	RoleInvestor:    true,
	RoleAlumni:      true,
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool { return allRoles[r] }

// String returns the role as stored in the database and in token claims.
func (r Role) String() string { return string(r) }

// ParseRole maps a raw string onto a Role. The boolean is false for any
// value outside the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

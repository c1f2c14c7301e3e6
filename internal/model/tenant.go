package model

import "time"

// Tenant represents one incubator organization. Tenant IDs are UUID strings
// generated at creation time; every scoped resource carries one.
type Tenant struct {
	ID        string    // tenants.id (uuid)
	Name      string    // tenants.name
	Slug      string    // tenants.slug (unique, url-safe)
	IsActive  bool      // tenants.is_active
	CreatedAt time.Time // tenants.created_at
}

package model

import "time"

// Cohort is an incubation batch inside a tenant. It is the representative
// tenant-scoped resource used to exercise the scoping invariant end to end;
// other resource types follow the same pattern.
type Cohort struct {
	ID        uint64    // cohorts.id
	TenantID  string    // cohorts.tenant_id
	Name      string    // cohorts.name
	StartsOn  time.Time // cohorts.starts_on
	EndsOn    time.Time // cohorts.ends_on
	CreatedAt time.Time // cohorts.created_at
}

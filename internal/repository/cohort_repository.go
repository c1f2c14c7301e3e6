package repository

import (
	"context"
	"database/sql"

	"github.com/openincube/platform/internal/model"
)

// CohortRepo reads and writes the `cohorts` table. Every accessor takes a
// Scope so the tenant invariant is enforced at the data layer, not left to
// handlers: a caller scoped to tenant T can only see or touch rows where
// tenant_id = T.
type CohortRepo struct{ DB *sql.DB }

func NewCohortRepo(db *sql.DB) *CohortRepo { return &CohortRepo{DB: db} }

// Scope is the tenant visibility of a data access. All is true only for
// SUPER_ADMIN callers, who are exempt from scoping.
type Scope struct {
	TenantID string
	All      bool
}

// List returns the cohorts visible inside scope, newest first.
func (r *CohortRepo) List(ctx context.Context, scope Scope) ([]model.Cohort, error) {
	query := "SELECT id, tenant_id, name, starts_on, ends_on, created_at FROM cohorts"
	args := []any{}
	if !scope.All {
		query += " WHERE tenant_id=?"
		args = append(args, scope.TenantID)
	}
	query += " ORDER BY id DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Cohort{}
	for rows.Next() {
		var c model.Cohort
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.StartsOn, &c.EndsOn, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get fetches one cohort visible inside scope. A row belonging to another
// tenant yields ErrNotFound, never a hint that it exists.
func (r *CohortRepo) Get(ctx context.Context, id uint64, scope Scope) (model.Cohort, error) {
	query := "SELECT id, tenant_id, name, starts_on, ends_on, created_at FROM cohorts WHERE id=?"
	args := []any{id}
	if !scope.All {
		query += " AND tenant_id=?"
		args = append(args, scope.TenantID)
	}
	var c model.Cohort
	err := r.DB.QueryRowContext(ctx, query+" LIMIT 1", args...).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.StartsOn, &c.EndsOn, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Cohort{}, ErrNotFound
	}
	return c, err
}

// Create inserts a cohort into the scope's tenant. Unscoped (SUPER_ADMIN)
// callers must name a target tenant explicitly in c.TenantID.
func (r *CohortRepo) Create(ctx context.Context, c model.Cohort, scope Scope) (uint64, error) {
	if !scope.All {
		// Writes always land in the caller's own tenant regardless of the
		// payload.
		c.TenantID = scope.TenantID
	}
	if c.TenantID == "" {
		return 0, ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO cohorts (tenant_id, name, starts_on, ends_on) VALUES (?,?,?,?)",
		c.TenantID, c.Name, c.StartsOn, c.EndsOn)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

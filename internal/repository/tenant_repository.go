package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/openincube/platform/internal/model"
)

// TenantRepo reads and writes the `tenants` table.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

// Create inserts a tenant with a generated UUID and returns it.
func (r *TenantRepo) Create(ctx context.Context, name, slug string) (model.Tenant, error) {
	t := model.Tenant{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(name),
		Slug:     strings.ToLower(strings.TrimSpace(slug)),
		IsActive: true,
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO tenants (id, name, slug) VALUES (?,?,?)", t.ID, t.Name, t.Slug)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.Tenant{}, ErrConflict
		}
		return model.Tenant{}, err
	}
	return t, nil
}

// GetByID fetches a tenant by UUID.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (model.Tenant, error) {
	var t model.Tenant
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, slug, is_active, created_at FROM tenants WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Tenant{}, ErrNotFound
	}
	return t, err
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/dbx"
	"github.com/openincube/platform/internal/model"
)

// UserRepo reads and writes the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,full_name,role,tenant_id,is_active,created_at,updated_at"

// Create inserts a user and returns its ID. Emails are normalized to
// lower case so lookups stay case-insensitive. tenantID may be empty only
// for SUPER_ADMIN accounts; it is stored as NULL.
func (r *UserRepo) Create(ctx context.Context, email, password, fullName string, role model.Role, tenantID string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, role, tenant_id) VALUES (?,?,?,?,?)",
		email, hash, fullName, role.String(), nullable(tenantID))
	if err != nil {
		// MySQL duplicate-entry error for the unique email key.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// CountSuperAdmins reports how many SUPER_ADMIN accounts exist. The
// bootstrap endpoint closes once this is non-zero.
func (r *UserRepo) CountSuperAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role=?", model.RoleSuperAdmin.String()).Scan(&n)
	return n, err
}

// UpdatePassword rewrites a user's password hash. It takes a queryer so the
// reset flow can run it inside the same transaction that consumes the token.
func (r *UserRepo) UpdatePassword(ctx context.Context, q dbx.DBTX, userID uint64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", passwordHash, userID)
	return err
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (model.User, error) {
	var (
		u      model.User
		role   string
		tenant sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &tenant, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if tenant.Valid {
		u.TenantID = tenant.String
	}
	return u, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package model

import "time"

// User mirrors the `users` table. TenantID is empty only for SUPER_ADMIN
// accounts, which are not scoped to any tenant. Role and TenantID together
// drive every authorization decision, so both are embedded in issued access
// tokens and never re-read from the database on the hot path.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email (unique, stored lower-case)
	PasswordHash string    // users.password_hash (bcrypt)
	FullName     string    // users.full_name
	Role         Role      // users.role
	TenantID     string    // users.tenant_id (empty when NULL)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models a row in `refresh_tokens`. There is at most one row
// per user (unique user_id); rotation overwrites TokenHash and ExpiresAt in
// place, so a value that is not the current hash is invalid even before it
// expires. Only the SHA-256 hash of the raw value is stored.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id (unique)
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
	UpdatedAt time.Time // refresh_tokens.updated_at
}

// PasswordResetToken models a row in `password_reset_tokens`. At most one
// active token exists per user; requesting a new reset deletes the previous
// row. Used flips false->true exactly once and never back.
type PasswordResetToken struct {
	ID        uint64    // password_reset_tokens.id
	UserID    uint64    // password_reset_tokens.user_id
	TokenHash string    // password_reset_tokens.token_hash
	ExpiresAt time.Time // password_reset_tokens.expires_at
	Used      bool      // password_reset_tokens.used
	CreatedAt time.Time // password_reset_tokens.created_at
}

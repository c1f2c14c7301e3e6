package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/openincube/platform/internal/dbx"
	"github.com/openincube/platform/internal/model"
)

// ResetTokenRepo is the password-reset ledger: single-use, time-boxed
// tokens, at most one active per user.
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Replace deletes any existing reset token for the user and installs a new
// one, inside a single transaction. Only one reset flow is ever active per
// user.
func (r *ResetTokenRepo) Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return dbx.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM password_reset_tokens WHERE user_id=?", userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, used) VALUES (?,?,?,0)",
			userID, tokenHash, exp)
		return err
	})
}

// Get loads a reset token by hash. ErrResetTokenInvalid for unknown values.
func (r *ResetTokenRepo) Get(ctx context.Context, tokenHash string) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, used, created_at FROM password_reset_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.PasswordResetToken{}, ErrResetTokenInvalid
	}
	if err != nil {
		return model.PasswordResetToken{}, err
	}
	return t, nil
}

// Consume flips used to true. The guarded UPDATE is the single-use
// barrier: of two concurrent resets with the same token exactly one update
// reports an affected row, the other gets ErrResetTokenExpiredOrUsed and
// its enclosing transaction rolls back before touching the password.
func (r *ResetTokenRepo) Consume(ctx context.Context, q dbx.DBTX, tokenHash string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used=1 WHERE token_hash=? AND used=0 AND expires_at > ?",
		tokenHash, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrResetTokenExpiredOrUsed
	}
	return nil
}

// Validate applies the same not-used-and-not-expired predicate as Consume
// without mutating anything. Client UIs call it before showing the reset
// form.
func (r *ResetTokenRepo) Validate(ctx context.Context, tokenHash string) error {
	t, err := r.Get(ctx, tokenHash)
	if err != nil {
		return err
	}
	if t.Used || time.Now().UTC().After(t.ExpiresAt) {
		return ErrResetTokenExpiredOrUsed
	}
	return nil
}

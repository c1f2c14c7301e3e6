package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/openincube/platform/internal/dbx"
)

// RefreshTokenRepo is the refresh-token ledger: at most one live token per
// user, rotated in place on every successful redemption.
type RefreshTokenRepo struct{ DB *sql.DB }

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo { return &RefreshTokenRepo{DB: db} }

// IssueOrRotate installs tokenHash as the user's current refresh token,
// replacing any previous value. The unique user_id key makes the upsert
// atomic per user: two concurrent calls serialize on the row and the last
// writer wins, leaving the loser's returned token immediately stale.
func (r *RefreshTokenRepo) IssueOrRotate(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE token_hash=VALUES(token_hash), expires_at=VALUES(expires_at)`,
		userID, tokenHash, exp)
	return err
}

// Redeem exchanges a refresh token hash for its owner's user ID and removes
// the row. Exactly one of several concurrent redemptions of the same value
// succeeds: each issues the DELETE, the row lock serializes them, and only
// the caller whose delete reports an affected row wins. Unknown, expired
// and already-rotated values all collapse into ErrRefreshTokenInvalid.
func (r *RefreshTokenRepo) Redeem(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return 0, ErrRefreshTokenInvalid
	}
	if err != nil {
		return 0, err
	}

	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		// A concurrent redemption of the same value got here first.
		return 0, ErrRefreshTokenInvalid
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, ErrRefreshTokenInvalid
	}
	return userID, nil
}

// Revoke deletes the user's refresh token (logout, password change,
// administrative session revocation). Revoking a user with no live token is
// a no-op. It takes a queryer so callers can fold it into a transaction.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, q dbx.DBTX, userID uint64) error {
	_, err := q.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}

// Package repository implements the MySQL-backed stores. Sentinel errors
// let the service and handler layers map storage outcomes onto the HTTP
// surface without inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when creating a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an insert collides with an existing unique
// value other than a user email (e.g. a tenant slug).
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a requested row does not exist or is not
// visible inside the caller's tenant scope. Cross-tenant reads surface as
// not-found rather than forbidden so resource existence never leaks.
var ErrNotFound = errors.New("not found")

// ErrRefreshTokenInvalid covers every refresh redemption failure: unknown
// value, expiry in the past, or a value superseded by rotation. Callers get
// no finer detail.
var ErrRefreshTokenInvalid = errors.New("refresh token invalid")

// ErrResetTokenInvalid is returned when a password-reset token value is
// unknown to the ledger.
var ErrResetTokenInvalid = errors.New("reset token invalid")

// ErrResetTokenExpiredOrUsed is returned for a known reset token that is
// past its expiry or already consumed; both states are terminal.
var ErrResetTokenExpiredOrUsed = errors.New("reset token expired or used")

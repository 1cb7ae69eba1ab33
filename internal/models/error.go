package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrForbidden carries the message clients key off; keep it stable.
	ErrForbidden = errors.New("Not authorized to modify users")

	// Account lifecycle errors
	ErrInvalidInviteCode = errors.New("invalid invite code")

	// Token registry errors
	ErrDuplicateToken = errors.New("token name already exists")
)

package models

import (
	"time"
)

// Account states. An account is only fully privileged once active.
const (
	StateNew     = "new"
	StatePending = "pending"
	StateActive  = "active"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string // canonical identifier, lower-cased, doubles as username
	Username     string
	Email        string
	PasswordHash string // derived via pkg/auth, never plaintext
	PasswordSalt string // generated once, reused across password changes
	Role         string // "user" or "admin"
	State        string // "new", "pending" or "active"
	InviteCode   string // present while activation is outstanding, "" otherwise
	APITokens    map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account has completed activation.
func (u *User) IsActive() bool {
	return u.State == StateActive
}

// IsAdmin reports whether the account carries the privileged role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidState reports whether s is one of the known account states.
func ValidState(s string) bool {
	switch s {
	case StateNew, StatePending, StateActive:
		return true
	}
	return false
}

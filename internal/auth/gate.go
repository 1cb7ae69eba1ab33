package auth

import (
	"github.com/attested/roster/internal/models"
)

// The authorization gate runs before any lookup of the target user, so a
// denial reveals nothing about whether the target exists.

// AuthorizeRead decides whether actor may read the target account and its
// tokens: the owner or an admin.
func AuthorizeRead(actor *Identity, targetUsername string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Is(targetUsername) {
		return nil
	}
	return models.ErrForbidden
}

// AuthorizeModify decides whether actor may mutate the target account or
// its tokens. Only admins qualify; self-service mutation goes through the
// invite-code confirmation path instead.
func AuthorizeModify(actor *Identity, targetUsername string) error {
	if actor.IsAdmin() {
		return nil
	}
	return models.ErrForbidden
}

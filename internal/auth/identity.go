package auth

import (
	"context"
	"net/http"

	"github.com/attested/roster/internal/models"
)

// Identity is the resolved acting identity of a request. A nil *Identity
// means the request is anonymous.
type Identity struct {
	Username string
	Role     string
}

// IsAdmin reports whether the identity carries the privileged role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// Is reports whether the identity belongs to the given username.
func (i *Identity) Is(username string) bool {
	return i != nil && i.Username == username
}

type contextKey string

// IdentityContextKey is the context key under which the resolved identity
// is stored.
const IdentityContextKey contextKey = "identity"

// GetIdentityFromContext extracts the acting identity from the request
// context. Returns nil for anonymous requests.
func GetIdentityFromContext(r *http.Request) *Identity {
	identity, ok := r.Context().Value(IdentityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

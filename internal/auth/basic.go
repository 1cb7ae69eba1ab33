package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/attested/roster/internal/models"
	pkgauth "github.com/attested/roster/pkg/auth"
)

// CredentialResolver looks up the account backing a basic-auth username.
type CredentialResolver interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// BasicAuthMiddleware resolves HTTP basic-auth credentials into an acting
// identity on the request context. Requests without credentials, or with
// credentials that don't verify, continue as anonymous; individual
// handlers decide what anonymous callers may do (the self-service
// confirmation path depends on this).
func BasicAuthMiddleware(resolver CredentialResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity := resolveIdentity(r.Context(), resolver, username, password, logger)
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func resolveIdentity(ctx context.Context, resolver CredentialResolver, username, password string, logger *slog.Logger) *Identity {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil
	}

	user, err := resolver.GetByUsername(ctx, username)
	if err != nil {
		logger.Info("basic auth lookup failed", slog.String("username", username))
		return nil
	}

	if !pkgauth.VerifyPassword(password, user.PasswordSalt, user.PasswordHash) {
		logger.Info("basic auth verification failed", slog.String("username", username))
		return nil
	}

	return &Identity{Username: user.Username, Role: user.Role}
}

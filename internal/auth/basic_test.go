package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attested/roster/internal/models"
	pkgauth "github.com/attested/roster/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	users map[string]*models.User
}

func (s *stubResolver) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if user, ok := s.users[username]; ok {
		return user, nil
	}
	return nil, models.ErrNotFound
}

func resolverWithUser(t *testing.T, username, password, role string) *stubResolver {
	t.Helper()

	salt, err := pkgauth.GenerateSalt()
	require.NoError(t, err)
	hash, err := pkgauth.HashPassword(password, salt)
	require.NoError(t, err)

	return &stubResolver{users: map[string]*models.User{
		username: {
			ID:           username,
			Username:     username,
			PasswordHash: hash,
			PasswordSalt: salt,
			Role:         role,
			State:        models.StateActive,
		},
	}}
}

func identityCapturingHandler(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetIdentityFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBasicAuthMiddleware_ResolvesIdentity(t *testing.T) {
	resolver := resolverWithUser(t, "alice", "s3cret-enough", models.RoleUser)

	var captured *Identity
	handler := BasicAuthMiddleware(resolver, slog.Default())(identityCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	req.SetBasicAuth("alice", "s3cret-enough")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, captured)
	assert.Equal(t, "alice", captured.Username)
	assert.Equal(t, models.RoleUser, captured.Role)
}

func TestBasicAuthMiddleware_WrongPasswordIsAnonymous(t *testing.T) {
	resolver := resolverWithUser(t, "alice", "s3cret-enough", models.RoleUser)

	var captured *Identity
	handler := BasicAuthMiddleware(resolver, slog.Default())(identityCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	req.SetBasicAuth("alice", "not-the-password")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, captured)
}

func TestBasicAuthMiddleware_NoHeaderIsAnonymous(t *testing.T) {
	resolver := resolverWithUser(t, "alice", "s3cret-enough", models.RoleUser)

	var captured *Identity
	handler := BasicAuthMiddleware(resolver, slog.Default())(identityCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/users/alice/available", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, captured)
}

func TestBasicAuthMiddleware_UsernameIsNormalized(t *testing.T) {
	resolver := resolverWithUser(t, "alice", "s3cret-enough", models.RoleUser)

	var captured *Identity
	handler := BasicAuthMiddleware(resolver, slog.Default())(identityCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	req.SetBasicAuth("  Alice ", "s3cret-enough")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, captured)
	assert.Equal(t, "alice", captured.Username)
}

func TestIdentityHelpers(t *testing.T) {
	var anonymous *Identity
	assert.False(t, anonymous.IsAdmin())
	assert.False(t, anonymous.Is("alice"))

	admin := &Identity{Username: "root", Role: models.RoleAdmin}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.Is("root"))
	assert.False(t, admin.Is("alice"))
}

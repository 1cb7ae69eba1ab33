package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attested/roster/internal/auth"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/internal/services"
	pkghttp "github.com/attested/roster/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithIdentity attaches an acting identity to the request context
func WithIdentity(req *http.Request, username, role string) *http.Request {
	identity := &auth.Identity{Username: username, Role: role}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

// NewTestRouter wires both handlers onto a chi router so URL parameters
// resolve the same way they do in production.
func NewTestRouter(userHandler *UserHandler, tokenHandler *TokenHandler) chi.Router {
	router := chi.NewRouter()
	router.Get("/users", userHandler.ListUsers)
	router.Get("/users/{id}", userHandler.GetUser)
	router.Post("/users/{id}", userHandler.CreateUser)
	router.Put("/users/{id}", userHandler.UpdateUser)
	router.Delete("/users/{id}", userHandler.DeleteUser)
	router.Get("/users/{id}/available", userHandler.Available)
	router.Post("/users/{id}/confirm", userHandler.Confirm)
	if tokenHandler != nil {
		router.Get("/users/{id}/tokens", tokenHandler.List)
		router.Post("/users/{id}/tokens", tokenHandler.IssueGenerated)
		router.Put("/users/{id}/tokens/{name}", tokenHandler.IssueNamed)
		router.Delete("/users/{id}/tokens/{name}", tokenHandler.Revoke)
	}
	return router
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is an {"error": ...} body
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	if expectedMessage != "" {
		assert.Equal(t, expectedMessage, resp.Error, "Error message mismatch")
	} else {
		assert.NotEmpty(t, resp.Error, "Error message should not be empty")
	}
}

// MockUserService implements UserService for testing
type MockUserService struct {
	CreateUserFunc func(ctx context.Context, id, email, password, role string) (*models.User, error)
	GetUserFunc    func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc  func(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateUserFunc func(ctx context.Context, id string, patch services.UserPatch) (*models.User, error)
	DeleteUserFunc func(ctx context.Context, id string) error
	AvailableFunc  func(ctx context.Context, username string) (bool, error)
}

func (m *MockUserService) CreateUser(ctx context.Context, id, email, password, role string) (*models.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, id, email, password, role)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserService) UpdateUser(ctx context.Context, id string, patch services.UserPatch) (*models.User, error) {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, patch)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) DeleteUser(ctx context.Context, id string) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return models.ErrNotFound
}

func (m *MockUserService) Available(ctx context.Context, username string) (bool, error) {
	if m.AvailableFunc != nil {
		return m.AvailableFunc(ctx, username)
	}
	return true, nil
}

// MockLifecycleService implements LifecycleService for testing
type MockLifecycleService struct {
	ConfirmFunc func(ctx context.Context, targetUsername string, actor *auth.Identity, creds services.ConfirmCredentials) (*models.User, error)
}

func (m *MockLifecycleService) Confirm(ctx context.Context, targetUsername string, actor *auth.Identity, creds services.ConfirmCredentials) (*models.User, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, targetUsername, actor, creds)
	}
	return nil, models.ErrInvalidInviteCode
}

// MockTokenService implements TokenService for testing
type MockTokenService struct {
	IssueFunc  func(ctx context.Context, username, name string) (*services.IssuedToken, error)
	RevokeFunc func(ctx context.Context, username, name string) error
	ListFunc   func(ctx context.Context, username string) (map[string]string, error)
}

func (m *MockTokenService) Issue(ctx context.Context, username, name string) (*services.IssuedToken, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, username, name)
	}
	return nil, models.ErrNotFound
}

func (m *MockTokenService) Revoke(ctx context.Context, username, name string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, username, name)
	}
	return models.ErrNotFound
}

func (m *MockTokenService) List(ctx context.Context, username string) (map[string]string, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, username)
	}
	return map[string]string{}, nil
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attested/roster/internal/auth"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(id string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Username:  id,
		Email:     id + "@example.com",
		Role:      models.RoleUser,
		State:     models.StateActive,
		APITokens: map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateUser_AdminSucceeds(t *testing.T) {
	userService := &MockUserService{
		CreateUserFunc: func(ctx context.Context, id, email, password, role string) (*models.User, error) {
			user := testUser(id)
			user.Email = email
			user.State = models.StateNew
			user.InviteCode = "code-c1"
			return user, nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob", CreateUserRequest{
		Email:    "bob@example.com",
		Password: "tops3cret",
	})
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp UserResponse
	AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "bob", resp.ID)
	assert.Equal(t, models.StateNew, resp.State)
	assert.Equal(t, "code-c1", resp.InviteCode)
}

func TestCreateUser_AnonymousForbidden(t *testing.T) {
	router := NewTestRouter(NewUserHandler(&MockUserService{}, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob", CreateUserRequest{Email: "bob@example.com"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "Not authorized to modify users")
}

func TestCreateUser_NonAdminForbidden(t *testing.T) {
	router := NewTestRouter(NewUserHandler(&MockUserService{}, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob", CreateUserRequest{Email: "bob@example.com"})
	req = WithIdentity(req, "alice", models.RoleUser)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "Not authorized to modify users")
}

func TestCreateUser_InvalidEmail(t *testing.T) {
	router := NewTestRouter(NewUserHandler(&MockUserService{}, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob", CreateUserRequest{Email: "not-an-email"})
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "")
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	userService := &MockUserService{
		CreateUserFunc: func(ctx context.Context, id, email, password, role string) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob", CreateUserRequest{Email: "bob@example.com"})
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusConflict, "")
}

func TestGetUser_Self(t *testing.T) {
	userService := &MockUserService{
		GetUserFunc: func(ctx context.Context, id string) (*models.User, error) {
			return testUser(id), nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodGet, "/users/alice", nil)
	req = WithIdentity(req, "alice", models.RoleUser)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp UserResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "alice", resp.ID)
}

func TestGetUser_OtherUserForbidden(t *testing.T) {
	lookups := 0
	userService := &MockUserService{
		GetUserFunc: func(ctx context.Context, id string) (*models.User, error) {
			lookups++
			return testUser(id), nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodGet, "/users/bob", nil)
	req = WithIdentity(req, "alice", models.RoleUser)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "Not authorized to modify users")
	// The gate denies before the target is ever looked up.
	assert.Zero(t, lookups)
}

func TestGetUser_ResponseOmitsCredentials(t *testing.T) {
	userService := &MockUserService{
		GetUserFunc: func(ctx context.Context, id string) (*models.User, error) {
			user := testUser(id)
			user.PasswordHash = "digest"
			user.PasswordSalt = "salt"
			user.APITokens = map[string]string{"ci": "rst_secret"}
			return user, nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodGet, "/users/alice", nil)
	req = WithIdentity(req, "alice", models.RoleUser)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "digest")
	assert.NotContains(t, w.Body.String(), "salt")
	assert.NotContains(t, w.Body.String(), "rst_secret")
}

func TestListUsers_AdminOnly(t *testing.T) {
	userService := &MockUserService{
		ListUsersFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			return []*models.User{testUser("alice"), testUser("bob")}, nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodGet, "/users", nil)
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp ListUsersResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 2, resp.Total)

	req = NewTestRequest(t, http.MethodGet, "/users", nil)
	req = WithIdentity(req, "alice", models.RoleUser)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "Not authorized to modify users")
}

func TestUpdateUser_Returns204(t *testing.T) {
	var gotPatch services.UserPatch
	userService := &MockUserService{
		UpdateUserFunc: func(ctx context.Context, id string, patch services.UserPatch) (*models.User, error) {
			gotPatch = patch
			return testUser(id), nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPut, "/users/bob", UpdateUserRequest{Password: "new-pw"})
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "new-pw", gotPatch.Password)
}

func TestUpdateUser_InvalidState(t *testing.T) {
	router := NewTestRouter(NewUserHandler(&MockUserService{}, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPut, "/users/bob", UpdateUserRequest{State: "suspended"})
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "")
}

func TestDeleteUser_Returns200(t *testing.T) {
	userService := &MockUserService{
		DeleteUserFunc: func(ctx context.Context, id string) error {
			return nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodDelete, "/users/bob", nil)
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp OKResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.OK)
	assert.Equal(t, "bob", resp.ID)
}

func TestAvailable_Anonymous(t *testing.T) {
	userService := &MockUserService{
		AvailableFunc: func(ctx context.Context, username string) (bool, error) {
			return username != "taken", nil
		},
	}
	router := NewTestRouter(NewUserHandler(userService, &MockLifecycleService{}), nil)

	// No identity on the request at all.
	req := NewTestRequest(t, http.MethodGet, "/users/free/available", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp AvailableResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Available)

	req = NewTestRequest(t, http.MethodGet, "/users/taken/available", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.False(t, resp.Available)
}

func TestConfirm_AnonymousWithCode(t *testing.T) {
	var gotActor *auth.Identity
	var gotCode string
	lifecycle := &MockLifecycleService{
		ConfirmFunc: func(ctx context.Context, target string, actor *auth.Identity, creds services.ConfirmCredentials) (*models.User, error) {
			gotActor = actor
			gotCode = creds.InviteCode
			user := testUser(target)
			user.State = models.StateActive
			return user, nil
		},
	}
	router := NewTestRouter(NewUserHandler(&MockUserService{}, lifecycle), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob/confirm", ConfirmRequest{InviteCode: "code-c1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp UserResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, models.StateActive, resp.State)
	assert.Nil(t, gotActor)
	assert.Equal(t, "code-c1", gotCode)
}

func TestConfirm_InvalidCodeIs400(t *testing.T) {
	router := NewTestRouter(NewUserHandler(&MockUserService{}, &MockLifecycleService{}), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob/confirm", ConfirmRequest{InviteCode: "wrong"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "invalid invite code")
}

func TestConfirm_ForbiddenIs403(t *testing.T) {
	lifecycle := &MockLifecycleService{
		ConfirmFunc: func(ctx context.Context, target string, actor *auth.Identity, creds services.ConfirmCredentials) (*models.User, error) {
			return nil, models.ErrForbidden
		},
	}
	router := NewTestRouter(NewUserHandler(&MockUserService{}, lifecycle), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob/confirm", nil)
	req = WithIdentity(req, "alice", models.RoleUser)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "Not authorized to modify users")
}

func TestConfirm_MailerFailureIs500(t *testing.T) {
	lifecycle := &MockLifecycleService{
		ConfirmFunc: func(ctx context.Context, target string, actor *auth.Identity, creds services.ConfirmCredentials) (*models.User, error) {
			user := testUser(target)
			user.State = models.StatePending
			return user, errors.New("state updated but confirmation email failed: ses throttled")
		},
	}
	router := NewTestRouter(NewUserHandler(&MockUserService{}, lifecycle), nil)

	req := NewTestRequest(t, http.MethodPost, "/users/bob/confirm", nil)
	req = WithIdentity(req, "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ses throttled")
}

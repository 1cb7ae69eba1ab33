package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/attested/roster/internal/auth"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/internal/services"
	pkghttp "github.com/attested/roster/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for account business logic
type UserService interface {
	CreateUser(ctx context.Context, id, email, password, role string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateUser(ctx context.Context, id string, patch services.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	Available(ctx context.Context, username string) (bool, error)
}

// LifecycleService defines the interface for account confirmation
type LifecycleService interface {
	Confirm(ctx context.Context, targetUsername string, actor *auth.Identity, creds services.ConfirmCredentials) (*models.User, error)
}

// UserHandler handles account HTTP requests
type UserHandler struct {
	users     UserService
	lifecycle LifecycleService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, lifecycle LifecycleService) *UserHandler {
	return &UserHandler{
		users:     users,
		lifecycle: lifecycle,
	}
}

// Request/Response DTOs

// CreateUserRequest represents the request body for creating a user; the
// username comes from the URL.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=1"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=1"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	State    string `json:"state" validate:"omitempty,oneof=new pending active"`
}

// ConfirmRequest carries the optional invite code for a confirmation
type ConfirmRequest struct {
	InviteCode string `json:"invite_code"`
}

// UserResponse represents a user in HTTP responses. Credential fields and
// tokens never appear here.
type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	State      string `json:"state"`
	InviteCode string `json:"invite_code,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
}

// AvailableResponse answers the anonymous availability check
type AvailableResponse struct {
	Available bool `json:"available"`
}

// OKResponse is the couch-style acknowledgement for destructive calls
type OKResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// userModelToResponse converts a user model to a response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		State:      user.State,
		InviteCode: user.InviteCode,
		CreatedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeServiceError maps service-layer sentinels onto HTTP status codes.
// Backend errors surface their text at 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrBadRequest) || errors.Is(err, models.ErrInvalidInviteCode):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, models.ErrForbidden.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, err.Error())
	case errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrDuplicateToken):
		pkghttp.WriteConflict(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, err.Error())
	}
}

// GetUser retrieves a user by username. Owner or admin only.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	actor := auth.GetIdentityFromContext(r)
	if err := auth.AuthorizeRead(actor, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// ListUsers retrieves all users with pagination. Admin only.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetIdentityFromContext(r)
	if err := auth.AuthorizeModify(actor, ""); err != nil {
		writeServiceError(w, err)
		return
	}

	limit := 100
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 1000 {
			pkghttp.WriteBadRequest(w, "invalid limit parameter")
			return
		}
		limit = n
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			pkghttp.WriteBadRequest(w, "invalid offset parameter")
			return
		}
		offset = n
	}

	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := &ListUsersResponse{
		Users: make([]*UserResponse, len(users)),
		Total: len(users),
	}
	for i, user := range users {
		response.Users[i] = userModelToResponse(user)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// CreateUser creates a new account under the username in the URL. Admin
// only; the gate runs before any lookup of the target.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	actor := auth.GetIdentityFromContext(r)
	if err := auth.AuthorizeModify(actor, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.users.CreateUser(r.Context(), userID, req.Email, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userModelToResponse(created))
}

// UpdateUser applies a partial update. Admin only. Responds 204.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	actor := auth.GetIdentityFromContext(r)
	if err := auth.AuthorizeModify(actor, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_, err := h.users.UpdateUser(r.Context(), userID, services.UserPatch{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		State:    req.State,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser removes an account. Admin only.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	actor := auth.GetIdentityFromContext(r)
	if err := auth.AuthorizeModify(actor, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, OKResponse{OK: true, ID: userID})
}

// Available answers the anonymous "is this username taken?" check.
func (h *UserHandler) Available(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	available, err := h.users.Available(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AvailableResponse{Available: available})
}

// Confirm runs one confirmation attempt. Anonymous callers may activate
// an account by presenting its invite code; admins nudge accounts to
// pending. The lifecycle service decides which path applies.
func (h *UserHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	var req ConfirmRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkghttp.WriteBadRequest(w, "invalid request body")
			return
		}
	}

	actor := auth.GetIdentityFromContext(r)

	user, err := h.lifecycle.Confirm(r.Context(), userID, actor, services.ConfirmCredentials{
		InviteCode: req.InviteCode,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

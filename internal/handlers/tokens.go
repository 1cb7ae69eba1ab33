package handlers

import (
	"context"
	"net/http"

	"github.com/attested/roster/internal/auth"
	"github.com/attested/roster/internal/services"
	pkghttp "github.com/attested/roster/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TokenService defines the interface for the per-user token registry
type TokenService interface {
	Issue(ctx context.Context, username, name string) (*services.IssuedToken, error)
	Revoke(ctx context.Context, username, name string) error
	List(ctx context.Context, username string) (map[string]string, error)
}

// TokenHandler handles API token HTTP requests
type TokenHandler struct {
	service TokenService
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(service TokenService) *TokenHandler {
	return &TokenHandler{
		service: service,
	}
}

// IssuedTokenResponse returns the secret once, at issuance.
type IssuedTokenResponse struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// IssueNamed mints a token with the name from the URL. Admin only.
func (h *TokenHandler) IssueNamed(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, chi.URLParam(r, "name"))
}

// IssueGenerated mints a token with a generated name. Admin only.
func (h *TokenHandler) IssueGenerated(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, "")
}

func (h *TokenHandler) issue(w http.ResponseWriter, r *http.Request, name string) {
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

	token, err := h.service.Issue(r.Context(), userID, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, IssuedTokenResponse{
		Name:   token.Name,
		Secret: token.Secret,
	})
}

// Revoke removes the named token. Admin only.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := services.NormalizeUsername(chi.URLParam(r, "id"))
	name := chi.URLParam(r, "name")
	if userID == "" || name == "" {
		pkghttp.WriteBadRequest(w, "username and token name are required")
		return
	}

	actor := auth.GetIdentityFromContext(r)
	if err := auth.AuthorizeModify(actor, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.service.Revoke(r.Context(), userID, name); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, OKResponse{OK: true, ID: name})
}

// List returns the user's tokens as a name-to-secret mapping. Owner or
// admin only.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
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

	tokens, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tokens)
}

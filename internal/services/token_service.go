package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/attested/roster/internal/models"
	pkgauth "github.com/attested/roster/pkg/auth"
	"github.com/attested/roster/pkg/logger"
	"github.com/google/uuid"
)

// TokenService manages per-user API tokens: named, server-generated
// secrets persisted on the user record. Names are unique within a user,
// not globally.
type TokenService struct {
	repo   UserRepository
	events EventSink
	logger *slog.Logger
}

// NewTokenService creates a new TokenService
func NewTokenService(repo UserRepository, events EventSink, logger *slog.Logger) *TokenService {
	return &TokenService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// IssuedToken is the result of issuing a token; the secret is returned to
// the caller exactly as stored.
type IssuedToken struct {
	Name   string
	Secret string
}

func (s *TokenService) emit(user *models.User) {
	s.events.Emit(logger.ChangeEvent{
		Kind:      "user",
		Operation: "update",
		ID:        user.ID,
		State:     user.State,
	})
}

// Issue mints a new token for the user. An empty name gets a generated
// one. Secrets are never accepted from clients.
func (s *TokenService) Issue(ctx context.Context, username, name string) (*IssuedToken, error) {
	user, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", username), slog.Any("error", err))
		return nil, err
	}

	if name == "" {
		name = "token-" + uuid.NewString()[:8]
	}

	if user.APITokens == nil {
		user.APITokens = map[string]string{}
	}
	if _, exists := user.APITokens[name]; exists {
		return nil, models.ErrDuplicateToken
	}

	secret, err := pkgauth.GenerateTokenSecret()
	if err != nil {
		s.logger.Error("failed to generate token secret", slog.Any("error", err))
		return nil, err
	}

	user.APITokens[name] = secret

	updated, err := s.repo.Update(ctx, user.ID, user)
	if err != nil {
		s.logger.Error("failed to persist token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	s.emit(updated)
	s.logger.Info("api token issued", slog.String("user_id", user.ID), slog.String("token_name", name))
	return &IssuedToken{Name: name, Secret: secret}, nil
}

// Revoke removes the named token from the user.
func (s *TokenService) Revoke(ctx context.Context, username, name string) error {
	user, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", username), slog.Any("error", err))
		return err
	}

	if _, exists := user.APITokens[name]; !exists {
		return models.ErrNotFound
	}

	delete(user.APITokens, name)

	updated, err := s.repo.Update(ctx, user.ID, user)
	if err != nil {
		s.logger.Error("failed to persist token removal", slog.String("user_id", user.ID), slog.Any("error", err))
		return err
	}

	s.emit(updated)
	s.logger.Info("api token revoked", slog.String("user_id", user.ID), slog.String("token_name", name))
	return nil
}

// List returns all of the user's tokens for inspection by an authorized
// actor.
func (s *TokenService) List(ctx context.Context, username string) (map[string]string, error) {
	user, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", username), slog.Any("error", err))
		return nil, err
	}

	tokens := make(map[string]string, len(user.APITokens))
	for name, secret := range user.APITokens {
		tokens[name] = secret
	}
	return tokens, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/attested/roster/internal/models"
	pkgauth "github.com/attested/roster/pkg/auth"
	"github.com/attested/roster/pkg/logger"
	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByInviteCode(ctx context.Context, code string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	ConsumeInviteCode(ctx context.Context, code string) (*models.User, error)
	Delete(ctx context.Context, id string) error
	DeleteStaleUnconfirmed(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventSink receives fire-and-forget change events. Emission must never
// fail or block the operation that produced the event.
type EventSink interface {
	Emit(event logger.ChangeEvent)
}

// UserService owns account CRUD and the mandatory pre-commit transforms:
// id normalization, credential hashing and the activation policy. These
// run here for every write path, so no caller can persist a plaintext
// password or skip invite-code issuance.
type UserService struct {
	repo              UserRepository
	events            EventSink
	requireActivation bool
	logger            *slog.Logger
}

// NewUserService creates a new UserService. requireActivation is fixed at
// construction time.
func NewUserService(repo UserRepository, events EventSink, requireActivation bool, logger *slog.Logger) *UserService {
	return &UserService{
		repo:              repo,
		events:            events,
		requireActivation: requireActivation,
		logger:            logger,
	}
}

// UserPatch carries the updatable fields. Zero values mean "leave as is".
type UserPatch struct {
	Email    string
	Password string // plaintext, hashed before persisting
	Role     string
	State    string
}

func (s *UserService) emit(operation string, user *models.User) {
	s.events.Emit(logger.ChangeEvent{
		Kind:      "user",
		Operation: operation,
		ID:        user.ID,
		State:     user.State,
	})
}

// NormalizeUsername applies the canonical form used for ids: trimmed and
// lower-cased.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateUser creates a new account. The id doubles as username and is
// assigned exactly once. With activation required the account starts in
// the "new" state carrying a fresh invite code; otherwise it is active
// immediately.
func (s *UserService) CreateUser(ctx context.Context, id, email, password, role string) (*models.User, error) {
	id = NormalizeUsername(id)
	if id == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrBadRequest)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	_, err := s.repo.GetByUsername(ctx, id)
	if err == nil {
		s.logger.Info("username already taken", slog.String("user_id", id))
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username", slog.String("user_id", id), slog.Any("error", err))
		return nil, err
	}

	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		ID:        id,
		Username:  id,
		Email:     email,
		Role:      role,
		APITokens: map[string]string{},
	}

	if err := s.applyPassword(user, password); err != nil {
		return nil, err
	}

	if s.requireActivation {
		user.State = models.StateNew
		user.InviteCode = uuid.NewString()
	} else {
		user.State = models.StateActive
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		s.logger.Error("failed to create user", slog.String("user_id", id), slog.Any("error", err))
		return nil, err
	}

	s.emit("create", created)
	s.logger.Info("user created", slog.String("user_id", created.ID), slog.String("state", created.State))
	return created, nil
}

// GetUser retrieves a user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, NormalizeUsername(id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, err
	}

	s.emit("read", user)
	return user, nil
}

// ListUsers retrieves users with pagination.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, err
	}

	return users, nil
}

// UpdateUser applies a patch to an existing account. A new plaintext
// password is hashed with the user's existing salt; the salt is not
// rotated on password change.
func (s *UserService) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, NormalizeUsername(id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, err
	}

	if patch.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(patch.Email))
	}
	if patch.Role != "" {
		user.Role = patch.Role
	}
	if patch.State != "" {
		if !models.ValidState(patch.State) {
			return nil, fmt.Errorf("%w: unknown state %q", models.ErrBadRequest, patch.State)
		}
		user.State = patch.State
		if user.State == models.StateActive {
			user.InviteCode = ""
		}
	}
	if patch.Password != "" {
		if err := s.applyPassword(user, patch.Password); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, user.ID, user)
	if err != nil {
		s.logger.Error("failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, err
	}

	s.emit("update", updated)
	s.logger.Info("user updated", slog.String("user_id", updated.ID))
	return updated, nil
}

// DeleteUser removes an account. Destruction is immediate; there is no
// soft delete.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	id = NormalizeUsername(id)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return err
	}

	s.emit("destroy", user)
	s.logger.Info("user deleted", slog.String("user_id", id))
	return nil
}

// Available reports whether a username is still free. Callable without
// authentication; reveals nothing beyond existence.
func (s *UserService) Available(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if err == nil {
		return false, nil
	}
	if errors.Is(err, models.ErrNotFound) {
		return true, nil
	}
	return false, err
}

// applyPassword hashes a plaintext password into the user record. The
// salt is generated once per user and reused on subsequent changes. The
// plaintext never leaves this function.
func (s *UserService) applyPassword(user *models.User, password string) error {
	if password == "" {
		return nil
	}

	if user.PasswordSalt == "" {
		salt, err := pkgauth.GenerateSalt()
		if err != nil {
			s.logger.Error("failed to generate salt", slog.Any("error", err))
			return err
		}
		user.PasswordSalt = salt
	}

	hash, err := pkgauth.HashPassword(password, user.PasswordSalt)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return err
	}
	user.PasswordHash = hash
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/attested/roster/internal/auth"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/pkg/logger"
)

// EmailService defines the interface for the outbound mailer.
type EmailService interface {
	SendConfirmation(ctx context.Context, user *models.User) error
	SendPasswordReset(ctx context.Context, user *models.User) error
}

// LifecycleService drives the account state machine: new -> pending ->
// active, with active terminal. Activation happens either by presenting
// the account's invite code (self-service, the code IS the
// authentication) or by an admin nudging the account to pending with a
// confirmation email.
type LifecycleService struct {
	repo   UserRepository
	events EventSink
	mailer EmailService
	logger *slog.Logger
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(repo UserRepository, events EventSink, mailer EmailService, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:   repo,
		events: events,
		mailer: mailer,
		logger: logger,
	}
}

// ConfirmCredentials carries the optional invite code presented with a
// confirmation request.
type ConfirmCredentials struct {
	InviteCode string
}

// Confirm executes one confirmation attempt against the target account.
//
// Anonymous or self callers must present an invite code; a matching code
// activates the account that issued it, consuming the code atomically.
// Of two racing attempts with the same code only one can match, the
// loser sees ErrInvalidInviteCode. No email is sent on this path.
//
// An admin confirming someone else without a code re-affirms the pending
// state and sends the confirmation email. The state change persists even
// if the send fails; the mailer error is still returned, so callers must
// treat a failed confirm as possibly half-applied.
func (s *LifecycleService) Confirm(ctx context.Context, targetUsername string, actor *auth.Identity, creds ConfirmCredentials) (*models.User, error) {
	target := NormalizeUsername(targetUsername)
	code := strings.TrimSpace(creds.InviteCode)

	if actor == nil && code == "" {
		return nil, models.ErrInvalidInviteCode
	}

	if (actor == nil || actor.Is(target)) && code != "" {
		return s.confirmByInviteCode(ctx, code)
	}

	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}

	return s.nudgePending(ctx, target)
}

func (s *LifecycleService) confirmByInviteCode(ctx context.Context, code string) (*models.User, error) {
	user, err := s.repo.ConsumeInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("invite code did not match any account")
			return nil, models.ErrInvalidInviteCode
		}
		s.logger.Error("failed to consume invite code", slog.Any("error", err))
		return nil, err
	}

	s.events.Emit(logger.ChangeEvent{
		Kind:      "user",
		Operation: "update",
		ID:        user.ID,
		State:     user.State,
	})
	s.logger.Info("account activated by invite code", slog.String("user_id", user.ID))

	// An activated account without a password can't authenticate yet;
	// hand it the password reset flow.
	if user.PasswordHash == "" {
		if err := s.mailer.SendPasswordReset(ctx, user); err != nil {
			s.logger.Error("failed to send password reset email",
				slog.String("user_id", user.ID), slog.Any("error", err))
			return user, fmt.Errorf("account activated but password reset email failed: %w", err)
		}
	}

	return user, nil
}

func (s *LifecycleService) nudgePending(ctx context.Context, target string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, target)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", target), slog.Any("error", err))
		return nil, err
	}

	user.State = models.StatePending

	updated, err := s.repo.Update(ctx, user.ID, user)
	if err != nil {
		s.logger.Error("failed to update user", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	s.events.Emit(logger.ChangeEvent{
		Kind:      "user",
		Operation: "update",
		ID:        updated.ID,
		State:     updated.State,
	})
	s.logger.Info("account set to pending", slog.String("user_id", updated.ID))

	if err := s.mailer.SendConfirmation(ctx, updated); err != nil {
		s.logger.Error("failed to send confirmation email",
			slog.String("user_id", updated.ID), slog.Any("error", err))
		return updated, fmt.Errorf("state updated but confirmation email failed: %w", err)
	}

	return updated, nil
}

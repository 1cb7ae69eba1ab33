package services

import (
	"context"
	"time"

	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc                func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc          func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc             func(ctx context.Context, email string) (*models.User, error)
	GetByInviteCodeFunc        func(ctx context.Context, code string) (*models.User, error)
	ListFunc                   func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc                 func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc                 func(ctx context.Context, id string, user *models.User) (*models.User, error)
	ConsumeInviteCodeFunc      func(ctx context.Context, code string) (*models.User, error)
	DeleteFunc                 func(ctx context.Context, id string) error
	DeleteStaleUnconfirmedFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByInviteCode(ctx context.Context, code string) (*models.User, error) {
	if m.GetByInviteCodeFunc != nil {
		return m.GetByInviteCodeFunc(ctx, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) ConsumeInviteCode(ctx context.Context, code string) (*models.User, error) {
	if m.ConsumeInviteCodeFunc != nil {
		return m.ConsumeInviteCodeFunc(ctx, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) DeleteStaleUnconfirmed(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteStaleUnconfirmedFunc != nil {
		return m.DeleteStaleUnconfirmedFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendConfirmationFunc  func(ctx context.Context, user *models.User) error
	SendPasswordResetFunc func(ctx context.Context, user *models.User) error

	ConfirmationsSent  int
	PasswordResetsSent int
}

func (m *MockEmailService) SendConfirmation(ctx context.Context, user *models.User) error {
	m.ConfirmationsSent++
	if m.SendConfirmationFunc != nil {
		return m.SendConfirmationFunc(ctx, user)
	}
	return nil
}

func (m *MockEmailService) SendPasswordReset(ctx context.Context, user *models.User) error {
	m.PasswordResetsSent++
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, user)
	}
	return nil
}

// RecordingEventSink captures emitted events for assertions
type RecordingEventSink struct {
	Events []logger.ChangeEvent
}

func (s *RecordingEventSink) Emit(event logger.ChangeEvent) {
	s.Events = append(s.Events, event)
}

// TestUserBuilder helps construct test users
func NewTestUser(id, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Username:  id,
		Email:     email,
		Role:      models.RoleUser,
		State:     models.StateActive,
		APITokens: map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserUnconfirmed creates a user still holding an invite code
func NewTestUserUnconfirmed(id, email, inviteCode string) *models.User {
	user := NewTestUser(id, email)
	user.State = models.StateNew
	user.InviteCode = inviteCode
	return user
}

// NewTestAdmin creates a privileged user
func NewTestAdmin(id, email string) *models.User {
	user := NewTestUser(id, email)
	user.Role = models.RoleAdmin
	return user
}

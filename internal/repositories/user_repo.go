package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/attested/roster/internal/database"
	"github.com/attested/roster/internal/models"
	"github.com/jackc/pgx/v5"
)

const userColumns = "id, username, email, password_hash, password_salt, role, state, invite_code, api_tokens, created_at, updated_at"

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash, passwordSalt, inviteCode *string

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &passwordHash, &passwordSalt,
		&user.Role, &user.State, &inviteCode, &user.APITokens,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if passwordSalt != nil {
		user.PasswordSalt = *passwordSalt
	}
	if inviteCode != nil {
		user.InviteCode = *inviteCode
	}
	if user.APITokens == nil {
		user.APITokens = map[string]string{}
	}

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// nullable converts the model's empty-string convention to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByInviteCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE invite_code = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, code))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.APITokens == nil {
		user.APITokens = map[string]string{}
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, password_salt, role, state, invite_code, api_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email,
		nullable(user.PasswordHash), nullable(user.PasswordSalt),
		user.Role, user.State, nullable(user.InviteCode), user.APITokens,
		user.CreatedAt, user.UpdatedAt,
	))
}

// Update persists mutable fields. The id column never changes.
func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET email = $1, password_hash = $2, password_salt = $3, role = $4,
		    state = $5, invite_code = $6, api_tokens = $7, updated_at = $8
		WHERE id = $9
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.Email, nullable(user.PasswordHash), nullable(user.PasswordSalt),
		user.Role, user.State, nullable(user.InviteCode), user.APITokens,
		user.UpdatedAt, id,
	))
}

// ConsumeInviteCode atomically activates the account holding the given
// invite code and clears the code. The WHERE clause is the concurrency
// guard: of two racing confirmations only one matches a row, the other
// gets ErrNotFound.
func (r *UserRepository) ConsumeInviteCode(ctx context.Context, code string) (*models.User, error) {
	query := `
		UPDATE users
		SET state = $1, invite_code = NULL, updated_at = $2
		WHERE invite_code = $3
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, models.StateActive, time.Now(), code))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteStaleUnconfirmed removes accounts still in the "new" state created
// before the cutoff. Used by the background sweep.
func (r *UserRepository) DeleteStaleUnconfirmed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM users WHERE state = $1 AND created_at < $2`

	result, err := r.db.Pool.Exec(ctx, query, models.StateNew, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

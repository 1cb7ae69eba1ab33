package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/attested/roster/internal/database"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/internal/repositories"
	"github.com/attested/roster/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and database handles
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts a PostgreSQL container, runs migrations, and
// returns the wired TestDB.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("roster"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// The embedded migrations run over database/sql; the pgx pool is
	// opened afterwards, same order as production startup.
	if err := database.MigrateDSN(connStr, logger); err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         database.NewFromPool(pool, logger),
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, "TRUNCATE TABLE users CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate users: %w", err)
	}
	return nil
}

// NewUserRepository creates the repository under test
func (db *TestDB) NewUserRepository() *repositories.UserRepository {
	return repositories.NewUserRepository(db.DB)
}

// SeedUser inserts an active account with hashed credentials
func SeedUser(ctx context.Context, pool *pgxpool.Pool, username, email, password, role string) (*models.User, error) {
	salt, err := auth.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	digest, err := auth.HashPassword(password, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, password_salt, role, state, api_tokens, created_at, updated_at)
		VALUES ($1, $1, $2, $3, $4, $5, $6, '{}'::jsonb, NOW(), NOW())
		RETURNING id, username, email, role, state, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, username, email, digest, salt, role, models.StateActive).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.State,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	user.APITokens = map[string]string{}

	return &user, nil
}

// SeedUnconfirmedUser inserts an account still holding its invite code
func SeedUnconfirmedUser(ctx context.Context, pool *pgxpool.Pool, username, email, inviteCode string) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, email, role, state, invite_code, api_tokens, created_at, updated_at)
		VALUES ($1, $1, $2, $3, $4, $5, '{}'::jsonb, NOW(), NOW())
		RETURNING id, username, email, role, state, invite_code, created_at, updated_at
	`

	var user models.User
	err := pool.QueryRow(ctx, query, username, email, models.RoleUser, models.StateNew, inviteCode).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.State,
		&user.InviteCode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert unconfirmed user: %w", err)
	}
	user.APITokens = map[string]string{}

	return &user, nil
}

// SeedStaleUser backdates an unconfirmed account so the sweep picks it up
func SeedStaleUser(ctx context.Context, pool *pgxpool.Pool, username, email string, age time.Duration) error {
	query := `
		INSERT INTO users (id, username, email, role, state, invite_code, api_tokens, created_at, updated_at)
		VALUES ($1, $1, $2, $3, $4, $5, '{}'::jsonb, NOW() - $6::interval, NOW() - $6::interval)
	`
	interval := fmt.Sprintf("%d seconds", int(age.Seconds()))
	if _, err := pool.Exec(ctx, query, username, email, models.RoleUser, models.StateNew, username+"-code", interval); err != nil {
		return fmt.Errorf("failed to insert stale user: %w", err)
	}
	return nil
}

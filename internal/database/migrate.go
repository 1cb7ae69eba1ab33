package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/attested/roster/internal/config"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies any pending schema migrations. Uses a short-lived
// database/sql connection; the pgx pool is opened separately afterwards.
func Migrate(cfg *config.DatabaseConfig, logger *slog.Logger) error {
	return MigrateDSN(cfg.DSN(), logger)
}

// MigrateDSN runs migrations against an arbitrary connection string.
func MigrateDSN(dsn string, logger *slog.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("unable to open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("unable to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("schema migrations applied", slog.Int64("version", version))
	return nil
}

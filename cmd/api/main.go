package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attested/roster/internal/background"
	"github.com/attested/roster/internal/config"
	"github.com/attested/roster/internal/database"
	"github.com/attested/roster/internal/handlers"
	middlewareCustom "github.com/attested/roster/internal/middleware"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/internal/repositories"
	"github.com/attested/roster/internal/routes"
	"github.com/attested/roster/internal/services"
	pkgauth "github.com/attested/roster/pkg/auth"
	pkglogger "github.com/attested/roster/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("activation_required", cfg.Accounts.RequireActivation))

	// Apply schema migrations
	if err := database.Migrate(&cfg.Database, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repository and event sink
	userRepo := repositories.NewUserRepository(db)
	events := pkglogger.NewEventEmitter(logger)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.BaseURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	userService := services.NewUserService(userRepo, events, cfg.Accounts.RequireActivation, logger)
	lifecycleService := services.NewLifecycleService(userRepo, events, emailService, logger)
	tokenService := services.NewTokenService(userRepo, events, logger)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, lifecycleService)
	tokenHandler := handlers.NewTokenHandler(tokenService)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, cfg.Accounts, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, userHandler, tokenHandler, userRepo, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start stale account sweep when configured
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	var sweepManager *background.SweepManager
	if cfg.Accounts.StaleAccountMaxAge > 0 {
		sweepManager = background.NewSweepManager(userRepo, logger, cfg.Accounts.SweepInterval, cfg.Accounts.StaleAccountMaxAge)
		go sweepManager.Start(sweepCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweepManager != nil {
		sweepManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin account if ADMIN_USERNAME and
// ADMIN_PASSWORD are set. The bootstrap admin is created pre-activated
// regardless of the activation policy; nothing could confirm it otherwise.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, cfg config.AccountsConfig, logger *slog.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	username := services.NormalizeUsername(cfg.AdminUsername)

	_, err := userRepo.GetByUsername(ctx, username)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	salt, err := pkgauth.GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate admin salt: %w", err)
	}
	hash, err := pkgauth.HashPassword(cfg.AdminPassword, salt)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		ID:           username,
		Username:     username,
		Email:        username + "@localhost",
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         models.RoleAdmin,
		State:        models.StateActive,
		APITokens:    map[string]string{},
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}

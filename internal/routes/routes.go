package routes

import (
	"log/slog"
	"time"

	"github.com/attested/roster/internal/auth"
	"github.com/attested/roster/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// RegisterRoutes registers all application routes. Basic-auth resolution
// runs on every route; handlers decide what anonymous callers may do.
// The availability check is rate limited because it is the only route
// reachable without any credentials at all. Confirmation is deliberately
// not rate limited.
func RegisterRoutes(
	router chi.Router,
	userHandler *handlers.UserHandler,
	tokenHandler *handlers.TokenHandler,
	resolver auth.CredentialResolver,
	logger *slog.Logger,
) {
	router.Group(func(r chi.Router) {
		r.Use(auth.BasicAuthMiddleware(resolver, logger))

		r.With(httprate.LimitByIP(30, 1*time.Minute)).
			Get("/users/{id}/available", userHandler.Available)

		r.Get("/users", userHandler.ListUsers)
		r.Get("/users/{id}", userHandler.GetUser)
		r.Post("/users/{id}", userHandler.CreateUser)
		r.Put("/users/{id}", userHandler.UpdateUser)
		r.Delete("/users/{id}", userHandler.DeleteUser)

		r.Post("/users/{id}/confirm", userHandler.Confirm)

		r.Get("/users/{id}/tokens", tokenHandler.List)
		r.Post("/users/{id}/tokens", tokenHandler.IssueGenerated)
		r.Put("/users/{id}/tokens/{name}", tokenHandler.IssueNamed)
		r.Delete("/users/{id}/tokens/{name}", tokenHandler.Revoke)
	})
}

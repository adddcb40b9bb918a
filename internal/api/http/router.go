package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Files          *handlers.FilesHandler
	Emails         *handlers.EmailsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Services assert permissions themselves; route guards only
// reject obviously misplaced calls early.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("", cfg.AuthMiddleware.Handle)

	users := api.Group("/users")
	users.Post("/", auth.RequireAnonymous(), cfg.Users.SignUp)
	users.Post("/log-in", auth.RequireAnonymous(), cfg.Users.LogIn)
	users.Post("/log-out", auth.RequireUser(), cfg.Users.LogOut)
	users.Post("/login-token", cfg.Users.RequestLoginToken)
	users.Post("/login-token/redeem", cfg.Users.LogInWithToken)
	users.Post("/password-reset", cfg.Users.RequestPasswordReset)
	users.Post("/password-reset/confirm", cfg.Users.ResetPassword)
	users.Get("/me", auth.RequireUser(), cfg.Users.Me)
	users.Get("/:id", auth.RequireUser(), cfg.Users.GetUser)
	users.Put("/:id/password", auth.RequireUser(), cfg.Users.UpdatePassword)

	api.Post("/emails", auth.RequireAnyPrincipal(), cfg.Emails.Send)

	files := api.Group("/files", auth.RequireAnyPrincipal())
	files.Post("/", cfg.Files.AddFiles)
	files.Get("/", cfg.Files.GetFiles)
	files.Put("/domain-type", auth.RequireSystem(), cfg.Files.SetDomainType)
	files.Post("/delete", auth.RequireSystem(), cfg.Files.DeleteFiles)
}

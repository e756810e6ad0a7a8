package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-management/internal/api/http/handlers"
	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/authn"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/observability"
)

// UserServiceRoutes bundles dependencies for user-service route registration.
type UserServiceRoutes struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Validation     *handlers.ValidationHandler
	Users          *handlers.UsersHandler
	Internal       *handlers.InternalUsersHandler
	OAuth2         *handlers.OAuth2Handler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *IPRateLimiter
	InternalGuard  fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterUserServiceRoutes wires user-service HTTP routes.
func RegisterUserServiceRoutes(app *fiber.App, cfg UserServiceRoutes) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Handler())

	authGroup := app.Group("/api/auth", cfg.RateLimiter.Handler())
	authGroup.Post("/signin", cfg.Auth.Signin)
	authGroup.Post("/signup", cfg.Auth.Signup)

	app.Post("/api/users/validate", cfg.Validation.Validate)

	users := app.Group("/api/users", cfg.AuthMiddleware.Handle)
	users.Get("/me", cfg.Users.Me)
	users.Get("/:id<int>", auth.RequireAnyRole(domain.RoleUser, domain.RoleAdmin), cfg.Users.Get)
	users.Get("/", auth.RequireAnyRole(domain.RoleAdmin), cfg.Users.List)

	internal := app.Group("/internal/users", cfg.InternalGuard)
	internal.Post("/user-id", cfg.Internal.UserID)
	internal.Post("/user-details", cfg.Internal.UserDetails)
	internal.Get("/ping", cfg.Internal.Ping)

	app.Get("/api/oauth2/providers", cfg.OAuth2.Providers)
	app.Get("/api/oauth2/redirect", cfg.OAuth2.Redirect)
	app.Get("/oauth2/authorization/:provider", cfg.OAuth2.Authorize)
	app.Get("/oauth2/callback/:provider", cfg.OAuth2.Callback)
}

// TaskBackendRoutes bundles dependencies for task-backend route registration.
type TaskBackendRoutes struct {
	Health        *handlers.HealthHandler
	Tasks         *handlers.TasksHandler
	Authenticator *authn.Authenticator
	Metrics       *observability.Metrics
}

// RegisterTaskBackendRoutes wires task-backend HTTP routes. The authenticator runs
// on every /api request before the authentication guard.
func RegisterTaskBackendRoutes(app *fiber.App, cfg TaskBackendRoutes) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Handler())

	api := app.Group("/api", cfg.Authenticator.Handle)
	tasks := api.Group("/tasks", auth.RequireAuthenticated())
	tasks.Get("/", cfg.Tasks.List)
	tasks.Post("/", cfg.Tasks.Create)
	tasks.Get("/my-tasks", cfg.Tasks.ListMine)
	tasks.Get("/my-tasks/status/:status", cfg.Tasks.ListMine)
	tasks.Get("/status/:status", cfg.Tasks.ListByStatus)
	tasks.Get("/status/:status/owner/:ownerId<int>", cfg.Tasks.ListByStatusAndOwner)
	tasks.Get("/owner/:ownerId<int>", cfg.Tasks.ListByOwner)
	tasks.Get("/:id<int>", cfg.Tasks.Get)
	tasks.Get("/:id<int>/history", cfg.Tasks.History)
	tasks.Put("/:id<int>", cfg.Tasks.Update)
	tasks.Delete("/:id<int>", cfg.Tasks.Delete)
}

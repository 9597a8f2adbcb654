package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thanh913/MOOJ/internal/config"
	"github.com/thanh913/MOOJ/internal/handler"
	"github.com/thanh913/MOOJ/internal/middleware"
	"github.com/thanh913/MOOJ/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	ProblemHandler    *handler.ProblemHandler
	EvaluatorHandler  *handler.EvaluatorHandler
	AdminHandler      *handler.AdminHandler
	HealthChecks      map[string]handler.HealthCheckFunc
	// JWTMiddleware guards submission and admin routes. Nil leaves them open.
	JWTMiddleware fiber.Handler
	// AppealLimiter throttles the appeal route. Nil disables throttling.
	AppealLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	authenticated := deps.JWTMiddleware
	if authenticated == nil {
		authenticated = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(api.Group("/problems"))
	}

	if deps.EvaluatorHandler != nil {
		deps.EvaluatorHandler.Register(api.Group("/evaluators"))
	}

	if deps.SubmissionHandler != nil {
		var appealGuards []fiber.Handler
		if deps.AppealLimiter != nil {
			appealGuards = append(appealGuards, deps.AppealLimiter)
		}
		deps.SubmissionHandler.Register(api.Group("/submissions", authenticated), appealGuards...)
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", authenticated)
		if deps.JWTMiddleware != nil {
			admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		}
		deps.AdminHandler.Register(admin)
	}
}

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/training-progress-api/internal/config"
	"github.com/noah-isme/training-progress-api/internal/handler"
	"github.com/noah-isme/training-progress-api/internal/middleware"
	"github.com/noah-isme/training-progress-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TemplateHandler *handler.TemplateHandler
	SessionHandler  *handler.SessionHandler
	ProgressHandler *handler.ProgressHandler
	ReportHandler   *handler.ReportHandler
	StreamHandler   *handler.StreamHandler
	JWTMiddleware   fiber.Handler
	StaffMiddleware fiber.Handler
	WriteLimiter    fiber.Handler
	HealthProbes    map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staff := deps.StaffMiddleware
	if staff == nil {
		staff = middleware.RequireRole(middleware.StaffRoles...)
	}

	protected := api.Group("", jwtMiddleware)
	if deps.WriteLimiter != nil {
		limiter := deps.WriteLimiter
		protected.Use(func(c *fiber.Ctx) error {
			if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
				return c.Next()
			}
			return limiter(c)
		})
	}

	// Templates
	if deps.TemplateHandler != nil {
		deps.TemplateHandler.Register(protected.Group("/templates"), staff)
	}

	// Sessions and enrollment overrides
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(protected, staff)
	}

	// Progress records
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(protected, staff)
	}

	// Roll-ups and audit trail
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(protected)
	}

	// Live stream
	if deps.StreamHandler != nil {
		deps.StreamHandler.Register(protected)
	}
}

package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/velora-health/privacy-engine/internal/config"
	"github.com/velora-health/privacy-engine/internal/handlers"
	"github.com/velora-health/privacy-engine/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	jobsHandler *handlers.JobsHandler,
	auditHandler *handlers.AuditHandler,
	privacyHandler *handlers.PrivacyHandler,
	adminHandler *handlers.AdminHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Health (public)
	api.Get("/health", healthHandler.Check)

	// Internal surface: scheduler triggers and privacy operations, all JWT
	// protected. The scheduler authenticates with a service JWT.
	internal := app.Group("/internal", middleware.JWTProtected(cfg))

	// Job triggers: 10 req/min per IP, these are expensive
	jobs := internal.Group("/jobs")
	jobs.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	jobs.Post("/extraction", jobsHandler.RunExtraction)
	jobs.Post("/aggregation", jobsHandler.RunAggregation)
	jobs.Post("/retention", jobsHandler.RunRetention)
	jobs.Post("/model-improvement", jobsHandler.RunModelImprovement)

	// Privacy rights (data subject requests, routed through support tooling)
	internal.Post("/privacy/erasure", privacyHandler.RequestErasure)
	internal.Get("/privacy/export/:user_id", privacyHandler.Export)

	// Audit chain verification
	internal.Get("/audit/verify", auditHandler.Verify)

	// Admin operations (JWT + admin required)
	admin := internal.Group("/admin", middleware.AdminRequired(cfg))
	admin.Post("/rotate-key", adminHandler.RotateKey)
}

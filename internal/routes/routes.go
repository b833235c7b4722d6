// Package routes defines the API routing configuration.
package routes

import (
	"time"

	"revattest/internal/handlers"
	"revattest/internal/middleware"
	"revattest/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Deps are the handlers and settings the routes need.
type Deps struct {
	JWTSecret       string
	IngestPerMinute int
	Health          *handlers.HealthHandler
	Attestations    *handlers.AttestationHandler
	Ingest          *handlers.IngestHandler
}

// SetupRoutes configures all application routes. Everything under /api/v1
// requires a service token; /health does not.
func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/health", d.Health.Check)

	api := app.Group("/api/v1", middleware.ServiceAuth(d.JWTSecret))

	api.Get("/schemas/attestation-v1", d.Attestations.Schema)
	api.Post("/kpis", middleware.RequireScope(models.ScopeKPICompute), d.Attestations.ComputeKPIs)
	api.Post("/attestations/verify", middleware.RequireScope(models.ScopeAttestationRead), d.Attestations.Verify)
	api.Post("/attestations", middleware.RequireScope(models.ScopeAttestationWrite), d.Attestations.Create)

	merchants := api.Group("/merchants/:merchantId")
	merchants.Post("/attestations", middleware.RequireScope(models.ScopeAttestationWrite), d.Attestations.CreateFromStore)
	merchants.Post("/ingest",
		middleware.RequireScope(models.ScopeIngest),
		ingestLimiter(d.IngestPerMinute),
		d.Ingest.Run,
	)
}

// ingestLimiter bounds ingest runs per merchant.
func ingestLimiter(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		perMinute = 10
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ingest:" + c.Params("merchantId")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	})
}

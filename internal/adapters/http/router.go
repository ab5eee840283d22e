package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/magvar/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Sunset headers for the pre-rename declination endpoint
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{
			Path:        "/v1/magdec",
			SunsetDate:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			Alternative: "/v1/declination",
		},
	}))

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/healthz", HealthHandler(deps))
	app.Get("/readyz", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/declination", timeout.NewWithContext(DeclinationHandler(deps), 15*time.Second))
	v1.Post("/declination\\:batch", timeout.NewWithContext(BatchDeclinationHandler(deps), 15*time.Second))
	v1.Post("/corrections", timeout.NewWithContext(CorrectionsHandler(deps), 15*time.Second))
	v1.Post("/interpolate", timeout.NewWithContext(InterpolateHandler(deps), 15*time.Second))
	v1.Get("/deployments", timeout.NewWithContext(ListDeploymentsHandler(deps), 15*time.Second))
	v1.Get("/deployments/nearest", timeout.NewWithContext(NearestDeploymentsHandler(deps), 15*time.Second))
	v1.Get("/deployments/:id", timeout.NewWithContext(GetDeploymentHandler(deps), 15*time.Second))
	v1.Get("/deployments/:id/series", timeout.NewWithContext(DeploymentSeriesHandler(deps), 15*time.Second))
	v1.Post("/deployments/:id/reprocess", timeout.NewWithContext(ReprocessDeploymentHandler(deps), 15*time.Second))

	// Legacy alias, kept until sunset
	v1.Get("/magdec", timeout.NewWithContext(DeclinationHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws/corrections", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/corrections", websocket.New(WebSocketHandler(deps.NATS)))
}

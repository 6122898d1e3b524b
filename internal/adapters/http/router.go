package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/Xombi17/MEETease/internal/pkg/metrics"
)

// requestTimeout bounds REST handlers. Calculation walks up to four
// provider tiers, each with its own HTTP timeout.
const requestTimeout = 30 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	if deps.validate == nil {
		deps.validate = validator.New(validator.WithRequiredStructEnabled())
	}

	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		// websocket sessions are long-lived and counted once
		Next: func(c *fiber.Ctx) bool {
			return websocket.IsWebSocketUpgrade(c)
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	with := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1.Post("/sessions", with(CreateSessionHandler(deps)))
	v1.Get("/sessions/:code", with(GetSessionHandler(deps)))
	v1.Post("/sessions/:code/participants", with(AddParticipantHandler(deps)))
	v1.Delete("/sessions/:code/participants/:id", with(RemoveParticipantHandler(deps)))
	v1.Put("/sessions/:code/participants/:id/location", with(UpdateLocationHandler(deps)))
	v1.Post("/sessions/:code/participants/:id/sharing", with(ToggleSharingHandler(deps)))
	v1.Put("/sessions/:code/participants/:id/directions", with(UpdateDirectionsHandler(deps)))
	v1.Put("/sessions/:code/destination", with(SetDestinationHandler(deps)))
	v1.Put("/sessions/:code/meeting-point", with(SetMeetingPointHandler(deps)))
	v1.Post("/sessions/:code/meeting-point/calculate", with(CalculateMeetingPointHandler(deps)))
	v1.Patch("/sessions/:code/settings", with(UpdateSettingsHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:code", SessionWebSocketGuard(deps), websocket.New(SessionWebSocketHandler(deps)))
}

package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Xombi17/MEETease/internal/pkg/logging"
)

// RequestIDLogMiddleware stores a request-scoped *slog.Logger carrying the
// Fiber request ID (and session code, when routed) in the user context.
// Downstream code retrieves it with logging.FromContext.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", rid)
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))
		return c.Next()
	}
}

// loggerFor returns the request logger enriched with the session code.
func loggerFor(c *fiber.Ctx) *slog.Logger {
	l := logging.FromContext(c.UserContext())
	if code := c.Params("code"); code != "" {
		l = l.With("session", code)
	}
	return l
}

package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"uptime":   time.Since(startedAt).String(),
			"version":  "dev",
			"sessions": len(deps.Sessions.Codes()),
		})
	}
}

// ReadyHandler checks NATS, Valkey and the geocoding providers.
// Unconfigured backends are reported but do not fail readiness; the
// service runs local-only without them.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		if deps.NATSConnected != nil {
			if deps.NATSConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		if deps.ValkeyPing != nil {
			if err := deps.ValkeyPing(ctx); err != nil {
				checks["valkey"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["valkey"] = "ok"
			}
		} else {
			checks["valkey"] = "not configured"
		}

		// the approximate fallback keeps resolution working without providers
		for _, p := range deps.Providers {
			key := "provider." + string(p.ID())
			if p.Available() {
				checks[key] = "ok"
			} else {
				checks[key] = "unavailable"
			}
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

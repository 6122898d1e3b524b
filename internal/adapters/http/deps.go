package http

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/Xombi17/MEETease/internal/core/ports"
	"github.com/Xombi17/MEETease/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions  *usecases.SessionManager
	Providers []ports.GeocodingProvider

	// Readiness probes; nil means the backend is not configured.
	NATSConnected func() bool
	ValkeyPing    func(ctx context.Context) error

	validate *validator.Validate
}

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUnprocessable returns a 422 error.
func errUnprocessable(c *fiber.Ctx, code, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, code, msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFromDomain maps a domain error to its HTTP response.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrParticipantNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrInsufficientParticipants):
		return errUnprocessable(c, "insufficient_participants", err.Error())
	case errors.Is(err, domain.ErrSyncUnreachable):
		return errUnavailable(c, err.Error())
	}
	logging.FromContext(c.UserContext()).Error("request failed", "error", err)
	return errInternal(c, "internal error")
}

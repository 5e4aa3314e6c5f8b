package http

import (
	"context"
	"errors"
	"io/fs"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, gateway_timeout, upstream_error, ...
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

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFetch maps an error from the crime service onto a response.
func errFetch(c *fiber.Ctx, err error) error {
	switch {
	case domain.IsBoundaryError(err) && errors.Is(err, fs.ErrNotExist):
		return errNotFound(c, err.Error())
	case domain.IsBoundaryError(err), errors.Is(err, domain.ErrEmptyPeriod):
		return errBadRequest(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "gateway_timeout", "fetch did not finish in time")
	case errors.Is(err, context.Canceled):
		return newError(c, fiber.StatusServiceUnavailable, "cancelled", "request cancelled")
	}
	logging.FromContext(c.UserContext()).Error("crime fetch failed", "error", err)
	return newError(c, fiber.StatusBadGateway, "upstream_error", "failed to fetch crimes")
}

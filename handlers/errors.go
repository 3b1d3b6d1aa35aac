package handlers

import (
	"errors"

	"initium-core/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrImportFormatInvalid):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyCompletedToday):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrSyncFailed):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
		"cause": err.Error(),
	})
}

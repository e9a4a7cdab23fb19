package handlers

import (
	"errors"
	"log/slog"

	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/dto"
	"github.com/canopyhq/entitlement-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// serviceError maps the grant-path error taxonomy onto HTTP statuses.
// Authorization failures and exhausted pools are the caller's problem;
// invariant violations and signing failures are ours.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrNoAvailablePool),
		errors.Is(err, services.ErrPoolInactive):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrInsufficientCapacity):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrConsumerNotFound),
		errors.Is(err, services.ErrPoolNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	default:
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
}

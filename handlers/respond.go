// handlers/respond.go
package handlers

import (
	"errors"

	"career-gamification-service/models"

	"github.com/gofiber/fiber/v2"
)

// serviceError translates the service error taxonomy to HTTP statuses:
// not found 404, failed precondition 422, duplicate join 409, exhausted
// optimistic-lock retries 503 (transient, retryable), everything else 500.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	var precondition *models.PreconditionError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	case errors.As(err, &precondition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": precondition.Reason,
		})
	case errors.Is(err, models.ErrAlreadyJoined):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": models.ErrAlreadyJoined.Error(),
		})
	case errors.Is(err, models.ErrConflict):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "concurrent update conflict, please retry",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
		"cause": err.Error(),
	})
}

package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// HandleQueueAvailable lists requeued cases the authenticated provider
// may pick up, oldest first. Cases the provider already declined are
// filtered out.
func HandleQueueAvailable(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	cases, err := engine().AvailableFromQueue(c.Context(), userCtx.UserID, limit)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"cases": cases})
}

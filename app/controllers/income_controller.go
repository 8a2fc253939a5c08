package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleIncomeSummary returns the authenticated provider's yearly income
// summary with monthly and payment-method breakdowns.
func HandleIncomeSummary(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "year must be a number"})
		}
		year = parsed
	}

	summary, err := engine().IncomeSummaryForYear(c.Context(), userCtx.UserID, year)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(summary)
}

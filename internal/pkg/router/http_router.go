package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/database"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "CraftMatch",
			"message": "Case assignment and bidding API. See /api/v1.",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		dbState := "up"
		if database.GetDB() == nil {
			status = "degraded"
			dbState = "down"
		} else if _, err := repository.GetGlobalFactory().GetCaseRepository().Count(); err != nil {
			status = "degraded"
			dbState = "error"
		}

		code := fiber.StatusOK
		if status != "ok" {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"database": dbState,
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

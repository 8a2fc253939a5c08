package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/craftmatch/CraftMatch/app/controllers"
	"github.com/craftmatch/CraftMatch/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Registration issues the API key everything below authenticates with.
	api.Post("/register", controllers.HandleRegisterUser)

	// API v1 routes, all behind API key auth
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())

	v1.Get("/ping", controllers.HandlePing)

	// account / API key management
	v1.Put("/account/api-key", controllers.HandleRotateAPIKey)
	v1.Delete("/account/api-key", controllers.HandleRevokeAPIKey)

	// cases
	v1.Post("/cases", controllers.HandleCreateCase)
	v1.Get("/cases", controllers.HandleListCases)
	v1.Get("/cases/:uuid", controllers.HandleGetCase)
	v1.Put("/cases/:uuid/accept", controllers.HandleAcceptCase)
	v1.Put("/cases/:uuid/decline", controllers.HandleDeclineCase)
	v1.Put("/cases/:uuid/cancel", controllers.HandleCancelCase)
	v1.Put("/cases/:uuid/select-winner", controllers.HandleSelectWinner)
	v1.Put("/cases/:uuid/complete", controllers.HandleCompleteCase)

	// bids
	v1.Post("/cases/:uuid/bids", controllers.HandlePlaceBid)
	v1.Get("/cases/:uuid/bids", controllers.HandleListBids)

	// requeue queue view
	v1.Get("/queue", controllers.HandleQueueAvailable)

	// income reporting
	v1.Get("/income/summary", controllers.HandleIncomeSummary)

	// notifications
	v1.Get("/notifications", controllers.HandleListNotifications)
	v1.Put("/notifications/:id/read", controllers.HandleMarkNotificationRead)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

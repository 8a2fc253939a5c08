package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/craftmatch/CraftMatch/app/repository"
)

// HandleListNotifications returns the authenticated user's notifications,
// newest first, plus the unread count.
func HandleListNotifications(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetNotificationRepository()

	notifications, err := repo.ListByUser(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to load notifications"})
	}
	unread, err := repo.CountUnread(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to count notifications"})
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"unread":        unread,
	})
}

// HandleMarkNotificationRead marks one of the user's notifications read.
func HandleMarkNotificationRead(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid notification id"})
	}

	ok, err = repository.GetGlobalFactory().GetNotificationRepository().MarkRead(uint(id), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to update notification"})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "notification not found"})
	}

	return c.JSON(fiber.Map{"marked_read": true})
}

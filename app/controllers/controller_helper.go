package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/apperrors"
	"github.com/craftmatch/CraftMatch/internal/pkg/assignment"
	"github.com/craftmatch/CraftMatch/internal/pkg/database"
	"github.com/craftmatch/CraftMatch/internal/pkg/usercontext"
)

const defaultPageSize = 20
const maxPageSize = 100

// engine builds the assignment service on the current database handle.
// Resolved per request so tests can swap the handle via database.SetDB.
func engine() *assignment.Service {
	return assignment.NewServiceFromDB(database.GetDB())
}

// handleError translates service errors into the API error envelope.
func handleError(c *fiber.Ctx, err error) error {
	kind := apperrors.KindOf(err)

	status := fiber.StatusInternalServerError
	switch kind {
	case apperrors.KindValidation:
		status = fiber.StatusBadRequest
	case apperrors.KindForbidden:
		status = fiber.StatusForbidden
	case apperrors.KindConflict:
		status = fiber.StatusConflict
	case apperrors.KindNotFound:
		status = fiber.StatusNotFound
	}

	body := fiber.Map{
		"error":   string(kind),
		"message": apperrors.MessageOf(err),
	}
	if reason := apperrors.ReasonOf(err); reason != "" {
		body["reason"] = reason
	}

	return c.Status(status).JSON(body)
}

// requireUser rejects requests that slipped past the auth middleware.
// The rejection response is written here; callers must stop when the
// second return value is false.
func requireUser(c *fiber.Ctx) (usercontext.UserContext, bool) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
		return userCtx, false
	}
	return userCtx, true
}

// caseByUUIDParam resolves the :uuid route parameter to a case. On
// failure the error response has already been written and the second
// return value is false.
func caseByUUIDParam(c *fiber.Ctx) (*models.Case, bool) {
	uuid := c.Params("uuid")
	if uuid == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "case uuid missing"})
		return nil, false
	}

	cs, err := repository.GetGlobalFactory().GetCaseRepository().GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "case not found"})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to load case"})
		}
		return nil, false
	}
	return cs, true
}

// parsePagination reads page/page_size query parameters into offset/limit.
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultPageSize)))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return (page - 1) * size, size
}

// HandlePing is a trivial liveness check behind API key auth.
func HandlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ping": "pong"})
}

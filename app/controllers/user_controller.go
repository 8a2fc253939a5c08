package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/database"
)

// RegisterUserRequest is the JSON body for POST /api/register.
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	Trades   string `json:"trades"`
}

// HandleRegisterUser creates an account and issues its API key. The raw
// key is returned exactly once; only its hash is stored.
func HandleRegisterUser(c *fiber.Ctx) error {
	var req RegisterUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}

	if req.Role == "" {
		req.Role = models.ROLE_CUSTOMER
	}
	if req.Role != models.ROLE_CUSTOMER && req.Role != models.ROLE_PROVIDER {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "role must be customer or provider"})
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": err.Error()})
	}
	user.Phone = req.Phone
	user.City = req.City
	user.Trades = req.Trades

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(user.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "email already registered"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("user lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "registration failed"})
	}

	if err := repo.Create(user); err != nil {
		log.Printf("user creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "registration failed"})
	}

	rawKey, err := issueKeyForUser(user.ID)
	if err != nil {
		log.Printf("api key issuance failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "registration failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"api_key": rawKey,
	})
}

// RotateAPIKeyRequest is the JSON body for PUT /api/v1/account/api-key.
type RotateAPIKeyRequest struct {
	Password string `json:"password"`
}

// HandleRotateAPIKey replaces the caller's API key after a password
// check. The old key stops working immediately.
func HandleRotateAPIKey(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req RotateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		log.Printf("user lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "key rotation failed"})
	}
	if !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "password verification failed"})
	}

	rawKey, err := issueKeyForUser(user.ID)
	if err != nil {
		log.Printf("api key rotation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "key rotation failed"})
	}

	return c.JSON(fiber.Map{"api_key": rawKey})
}

// HandleRevokeAPIKey invalidates the caller's API key without issuing a
// replacement.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		log.Printf("settings lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "key revocation failed"})
	}
	if !settings.HasActiveAPIKey() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "no active API key"})
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		log.Printf("settings update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "key revocation failed"})
	}

	return c.JSON(fiber.Map{"revoked": true})
}

// issueKeyForUser stores fresh key material on the user's settings row
// and returns the raw secret.
func issueKeyForUser(userID uint) (string, error) {
	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userID)
	if err != nil {
		return "", err
	}
	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		return "", err
	}
	if err := db.Save(settings).Error; err != nil {
		return "", err
	}
	return rawKey, nil
}

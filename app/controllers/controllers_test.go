package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/database"
	"github.com/craftmatch/CraftMatch/internal/pkg/usercontext"
)

// newTestApp wires the v1 routes against a fresh in-memory database. The
// auth middleware is replaced by one trusting the X-Test-User header.
func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Case{},
		&models.Bid{},
		&models.QueueEntry{},
		&models.TrialState{},
		&models.IncomeRecord{},
		&models.PointTransaction{},
		&models.Notification{},
	))

	database.SetDB(db)
	repository.InitializeFactory(db)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if raw := c.Get("X-Test-User"); raw != "" {
			id, _ := strconv.Atoi(raw)
			c.Locals("USER_CONTEXT", usercontext.UserContext{
				UserID:     uint(id),
				IsLoggedIn: true,
				Plan:       models.PlanPro,
			})
		}
		return c.Next()
	})

	app.Post("/api/register", HandleRegisterUser)

	v1 := app.Group("/api/v1")
	v1.Get("/ping", HandlePing)
	v1.Put("/account/api-key", HandleRotateAPIKey)
	v1.Delete("/account/api-key", HandleRevokeAPIKey)
	v1.Post("/cases", HandleCreateCase)
	v1.Get("/cases", HandleListCases)
	v1.Get("/cases/:uuid", HandleGetCase)
	v1.Put("/cases/:uuid/accept", HandleAcceptCase)
	v1.Put("/cases/:uuid/decline", HandleDeclineCase)
	v1.Put("/cases/:uuid/cancel", HandleCancelCase)
	v1.Put("/cases/:uuid/select-winner", HandleSelectWinner)
	v1.Put("/cases/:uuid/complete", HandleCompleteCase)
	v1.Post("/cases/:uuid/bids", HandlePlaceBid)
	v1.Get("/cases/:uuid/bids", HandleListBids)
	v1.Get("/queue", HandleQueueAvailable)
	v1.Get("/income/summary", HandleIncomeSummary)
	v1.Get("/notifications", HandleListNotifications)
	v1.Put("/notifications/:id/read", HandleMarkNotificationRead)

	return app, db
}

func seedAPIUser(t *testing.T, db *gorm.DB, name, role string, points int) *models.User {
	t.Helper()

	u := &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "irrelevant",
		Role:     role,
		Status:   models.STATUS_ACTIVE,
	}
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&models.UserSettings{
		UserID:         u.ID,
		Plan:           models.PlanPro,
		PointsBalance:  points,
		ContactEnabled: true,
	}).Error)
	return u
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(int(userID)))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func createCaseViaAPI(t *testing.T, app *fiber.App, customerID uint) string {
	t.Helper()

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/cases", customerID, fiber.Map{
		"service_type": "plumbing",
		"title":        "Leaking kitchen sink",
		"description":  "The sink drips constantly and needs a new trap.",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	uuid, _ := payload["uuid"].(string)
	require.NotEmpty(t, uuid)
	return uuid
}

func TestPingEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, fiber.MethodGet, "/api/v1/ping", 1, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", payload["ping"])
}

func TestCreateCaseEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/cases", customer.ID, fiber.Map{
		"service_type": "plumbing",
		"title":        "Leaking kitchen sink",
		"description":  "The sink drips constantly and needs a new trap.",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", payload["status"])
	assert.Equal(t, float64(customer.ID), payload["customer_id"])
	assert.NotEmpty(t, payload["uuid"])
}

func TestCreateCaseEndpointUnauthorized(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/cases", 0, fiber.Map{
		"service_type": "plumbing",
		"title":        "Leaking kitchen sink",
		"description":  "The sink drips constantly and needs a new trap.",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", payload["error"])
}

func TestCreateCaseEndpointValidation(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/cases", customer.ID, fiber.Map{
		"service_type": "plumbing",
		"description":  "no title present in this request body",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", payload["error"])
}

func TestGetCaseEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	uuid := createCaseViaAPI(t, app, customer.ID)

	resp, payload := doJSON(t, app, fiber.MethodGet, "/api/v1/cases/"+uuid, customer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, uuid, payload["uuid"])

	resp, payload = doJSON(t, app, fiber.MethodGet,
		"/api/v1/cases/00000000-0000-0000-0000-000000000000", customer.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", payload["error"])
}

func TestAcceptCaseEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	provider := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 0)
	uuid := createCaseViaAPI(t, app, customer.ID)

	resp, payload := doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/accept", provider.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", payload["status"])
	assert.Equal(t, float64(provider.ID), payload["provider_id"])
}

func TestAcceptCaseEndpointErrorMapping(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	first := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 0)
	second := seedAPIUser(t, db, "clara", models.ROLE_PROVIDER, 0)
	uuid := createCaseViaAPI(t, app, customer.ID)

	// Customer accepting their own case maps to 403 with a reason code.
	resp, payload := doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/accept", customer.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", payload["error"])
	assert.Equal(t, "wrong_actor", payload["reason"])

	resp, _ = doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/accept", first.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The second acceptance maps to 409.
	resp, payload = doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/accept", second.ID, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", payload["error"])
}

func TestBidAndSelectWinnerEndpoints(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	winner := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 100)
	loser := seedAPIUser(t, db, "clara", models.ROLE_PROVIDER, 100)
	uuid := createCaseViaAPI(t, app, customer.ID)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/cases/"+uuid+"/bids", winner.ID, fiber.Map{"points": 40})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	winningBidID := uint(payload["id"].(float64))

	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/cases/"+uuid+"/bids", loser.ID, fiber.Map{"points": 50})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Insufficient balance maps to 403 insufficient_points.
	broke := seedAPIUser(t, db, "dora", models.ROLE_PROVIDER, 5)
	resp, payload = doJSON(t, app, fiber.MethodPost, "/api/v1/cases/"+uuid+"/bids", broke.ID, fiber.Map{"points": 50})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "insufficient_points", payload["reason"])

	// Only the case owner sees the bids.
	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/cases/"+uuid+"/bids", winner.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, payload = doJSON(t, app, fiber.MethodGet, "/api/v1/cases/"+uuid+"/bids", customer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, payload["bids"], 2)

	resp, payload = doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/select-winner", customer.ID,
		fiber.Map{"bid_id": winningBidID})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", payload["status"])
	assert.Equal(t, float64(winner.ID), payload["provider_id"])

	// Second selection maps to 409.
	resp, _ = doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/select-winner", customer.ID,
		fiber.Map{"bid_id": winningBidID})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestCompleteCaseEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	provider := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 0)
	uuid := createCaseViaAPI(t, app, customer.ID)

	resp, _ := doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/accept", provider.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/complete", provider.ID, fiber.Map{
		"notes": "replaced the trap",
		"income": fiber.Map{
			"amount":         240.5,
			"payment_method": "card",
		},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["income_recorded"])

	caseBody, ok := payload["case"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "completed", caseBody["status"])

	// Income summary reflects the completion.
	resp, payload = doJSON(t, app, fiber.MethodGet, "/api/v1/income/summary", provider.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 240.5, payload["total"])
}

func TestDeclineAndQueueEndpoints(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	decliner := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 0)
	viewer := seedAPIUser(t, db, "clara", models.ROLE_PROVIDER, 0)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/cases", customer.ID, fiber.Map{
		"service_type":       "roofing",
		"title":              "Broken roof tiles",
		"description":        "Several tiles came loose after the last storm.",
		"assignment_type":    "specific",
		"target_provider_id": decliner.ID,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	uuid := payload["uuid"].(string)

	// Decline without a reason is rejected.
	resp, _ = doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/decline", decliner.ID, fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, payload = doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/decline", decliner.ID,
		fiber.Map{"reason": "fully booked"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", payload["status"])
	assert.Equal(t, "open", payload["assignment_type"])

	// The queue shows the case to others, never to the decliner.
	resp, payload = doJSON(t, app, fiber.MethodGet, "/api/v1/queue", viewer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, payload["cases"], 1)

	resp, payload = doJSON(t, app, fiber.MethodGet, "/api/v1/queue", decliner.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, payload["cases"])
}

func TestListCasesEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	provider := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 0)

	for i := 0; i < 3; i++ {
		createCaseViaAPI(t, app, customer.ID)
	}

	resp, payload := doJSON(t, app, fiber.MethodGet, "/api/v1/cases", provider.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, payload["cases"], 3)
	assert.Equal(t, float64(3), payload["total"])

	resp, payload = doJSON(t, app, fiber.MethodGet,
		"/api/v1/cases?role=customer&page_size=2", customer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, payload["cases"], 2)

	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/cases?status=bogus", customer.ID, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNotificationEndpoints(t *testing.T) {
	app, db := newTestApp(t)
	customer := seedAPIUser(t, db, "anna", models.ROLE_CUSTOMER, 0)
	provider := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 0)

	uuid := createCaseViaAPI(t, app, customer.ID)
	resp, _ := doJSON(t, app, fiber.MethodPut, "/api/v1/cases/"+uuid+"/accept", provider.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Acceptance notifies the customer.
	resp, payload := doJSON(t, app, fiber.MethodGet, "/api/v1/notifications", customer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	notifications, ok := payload["notifications"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, notifications)
	assert.Equal(t, float64(1), payload["unread"])

	first := notifications[0].(map[string]interface{})
	id := int(first["id"].(float64))

	resp, _ = doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/notifications/%d/read", id), customer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Another user cannot touch it.
	resp, _ = doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/notifications/%d/read", id), provider.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, payload = doJSON(t, app, fiber.MethodGet, "/api/v1/notifications", customer.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), payload["unread"])
}

func TestMutatingUnknownCaseReturnsNotFound(t *testing.T) {
	app, db := newTestApp(t)
	provider := seedAPIUser(t, db, "bert", models.ROLE_PROVIDER, 100)

	const unknown = "/api/v1/cases/00000000-0000-0000-0000-000000000000"

	resp, payload := doJSON(t, app, fiber.MethodPut, unknown+"/accept", provider.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", payload["error"])

	resp, payload = doJSON(t, app, fiber.MethodPost, unknown+"/bids", provider.ID, fiber.Map{"points": 10})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", payload["error"])

	resp, payload = doJSON(t, app, fiber.MethodPut, unknown+"/complete", provider.ID, fiber.Map{"notes": "done"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", payload["error"])
}

func TestRegisterIssuesAPIKey(t *testing.T) {
	app, db := newTestApp(t)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/register", 0, fiber.Map{
		"name":     "bert",
		"email":    "bert@example.com",
		"password": "hunter22",
		"role":     models.ROLE_PROVIDER,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	rawKey, _ := payload["api_key"].(string)
	require.NotEmpty(t, rawKey)
	assert.True(t, strings.HasPrefix(rawKey, "cm_"))

	user, settings, err := repository.NewUserRepository(db).GetByAPIKeyHash(models.HashAPIKey(rawKey))
	require.NoError(t, err)
	assert.Equal(t, "bert@example.com", user.Email)
	assert.True(t, settings.HasActiveAPIKey())

	// The same email cannot register twice.
	resp, payload = doJSON(t, app, fiber.MethodPost, "/api/register", 0, fiber.Map{
		"name":     "bert again",
		"email":    "bert@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", payload["error"])

	// Nobody registers themselves as admin.
	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/register", 0, fiber.Map{
		"name":     "clara",
		"email":    "clara@example.com",
		"password": "hunter22",
		"role":     models.ROLE_ADMIN,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRotateAndRevokeAPIKey(t *testing.T) {
	app, db := newTestApp(t)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/register", 0, fiber.Map{
		"name":     "bert",
		"email":    "bert@example.com",
		"password": "hunter22",
		"role":     models.ROLE_PROVIDER,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	oldKey := payload["api_key"].(string)
	userID := uint(payload["user"].(map[string]interface{})["id"].(float64))

	// Rotation requires the account password.
	resp, _ = doJSON(t, app, fiber.MethodPut, "/api/v1/account/api-key", userID, fiber.Map{"password": "wrong"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, payload = doJSON(t, app, fiber.MethodPut, "/api/v1/account/api-key", userID, fiber.Map{"password": "hunter22"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	newKey := payload["api_key"].(string)
	require.NotEmpty(t, newKey)
	assert.NotEqual(t, oldKey, newKey)

	repo := repository.NewUserRepository(db)
	_, _, err := repo.GetByAPIKeyHash(models.HashAPIKey(oldKey))
	assert.Error(t, err)
	_, _, err = repo.GetByAPIKeyHash(models.HashAPIKey(newKey))
	assert.NoError(t, err)

	resp, payload = doJSON(t, app, fiber.MethodDelete, "/api/v1/account/api-key", userID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["revoked"])

	_, _, err = repo.GetByAPIKeyHash(models.HashAPIKey(newKey))
	assert.Error(t, err)

	// A second revocation has nothing to revoke.
	resp, _ = doJSON(t, app, fiber.MethodDelete, "/api/v1/account/api-key", userID, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

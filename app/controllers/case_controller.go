package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/assignment"
)

// CreateCaseRequest is the JSON body for POST /api/v1/cases.
type CreateCaseRequest struct {
	ServiceType      string `json:"service_type"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	AssignmentType   string `json:"assignment_type"`
	TargetProviderID *uint  `json:"target_provider_id"`
	MaxBidders       int    `json:"max_bidders"`
	AllowRequeue     *bool  `json:"allow_requeue"`
}

// HandleCreateCase creates a new case owned by the authenticated customer.
func HandleCreateCase(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}

	created, err := engine().CreateCase(c.Context(), assignment.CreateCaseInput{
		CustomerID:       userCtx.UserID,
		ServiceType:      req.ServiceType,
		Title:            req.Title,
		Description:      req.Description,
		AssignmentType:   models.AssignmentType(req.AssignmentType),
		TargetProviderID: req.TargetProviderID,
		MaxBidders:       req.MaxBidders,
		AllowRequeue:     req.AllowRequeue,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleListCases lists cases filtered by status/role query parameters.
func HandleListCases(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	offset, limit := parsePagination(c)
	filter := repository.CaseFilter{Offset: offset, Limit: limit}

	if status := c.Query("status"); status != "" {
		cs := models.CaseStatus(status)
		if !cs.IsValid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "unknown status filter"})
		}
		filter.Status = cs
	}

	switch c.Query("role") {
	case "customer":
		filter.CustomerID = userCtx.UserID
	case "provider":
		filter.ProviderID = userCtx.UserID
	case "open", "":
		// Default view: open pending cases anyone may bid on.
		if filter.Status == "" {
			filter.Status = models.CaseStatusPending
		}
		filter.OnlyUnassigned = true
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "role must be customer, provider or open"})
	}

	cases, total, err := engine().ListCases(c.Context(), filter)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"cases": cases,
		"total": total,
	})
}

// HandleGetCase returns a single case by UUID.
func HandleGetCase(c *fiber.Ctx) error {
	if _, ok := requireUser(c); !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}
	return c.JSON(cs)
}

// HandleAcceptCase lets a provider accept a pending case.
func HandleAcceptCase(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	accepted, err := engine().AcceptCase(c.Context(), cs.ID, userCtx.UserID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(accepted)
}

// DeclineCaseRequest is the JSON body for PUT /api/v1/cases/:uuid/decline.
type DeclineCaseRequest struct {
	Reason string `json:"reason"`
}

// HandleDeclineCase lets the offered provider decline a direct offer,
// requeueing the case when it allows it.
func HandleDeclineCase(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	var req DeclineCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}

	declined, err := engine().DeclineCase(c.Context(), cs.ID, userCtx.UserID, req.Reason)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(declined)
}

// HandleCancelCase lets the owning customer cancel a live case.
func HandleCancelCase(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	cancelled, err := engine().CancelCase(c.Context(), cs.ID, userCtx.UserID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(cancelled)
}

// CompleteCaseRequest is the JSON body for PUT /api/v1/cases/:uuid/complete.
type CompleteCaseRequest struct {
	Notes  string `json:"notes"`
	Income *struct {
		Amount        float64 `json:"amount"`
		PaymentMethod string  `json:"payment_method"`
		Notes         string  `json:"notes"`
	} `json:"income"`
}

// HandleCompleteCase lets the assigned provider finish a case and report
// the income earned on it. A failed income capture is reported as a
// warning on an otherwise successful completion.
func HandleCompleteCase(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	var req CompleteCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}

	var income *assignment.IncomeInput
	if req.Income != nil {
		income = &assignment.IncomeInput{
			Amount:        req.Income.Amount,
			PaymentMethod: req.Income.PaymentMethod,
			Notes:         req.Income.Notes,
		}
	}

	result, err := engine().CompleteCase(c.Context(), cs.ID, userCtx.UserID, req.Notes, income)
	if err != nil {
		return handleError(c, err)
	}

	body := fiber.Map{
		"case":            result.Case,
		"income_recorded": result.IncomeRecorded,
	}
	if result.IncomeWarning != "" {
		body["income_warning"] = result.IncomeWarning
	}
	return c.JSON(body)
}

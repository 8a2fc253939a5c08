package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// PlaceBidRequest is the JSON body for POST /api/v1/cases/:uuid/bids.
type PlaceBidRequest struct {
	Points int `json:"points"`
}

// HandlePlaceBid places a point bid on an open case for the
// authenticated provider.
func HandlePlaceBid(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	var req PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}

	bid, err := engine().PlaceBid(c.Context(), cs.ID, userCtx.UserID, req.Points)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bid)
}

// HandleListBids lists all bids on a case. Only the owning customer may
// see them.
func HandleListBids(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	if cs.CustomerID != userCtx.UserID && !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "only the case owner can view bids"})
	}

	bids, err := engine().ListBids(c.Context(), cs.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"bids": bids})
}

// SelectWinnerRequest is the JSON body for PUT /api/v1/cases/:uuid/select-winner.
type SelectWinnerRequest struct {
	BidID uint `json:"bid_id"`
}

// HandleSelectWinner lets the owning customer pick the winning bid,
// refunding all losing bidders.
func HandleSelectWinner(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cs, ok := caseByUUIDParam(c)
	if !ok {
		return nil
	}

	var req SelectWinnerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "invalid request body"})
	}
	if req.BidID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": "bid_id is required"})
	}

	updated, err := engine().SelectWinner(c.Context(), cs.ID, req.BidID, userCtx.UserID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(updated)
}

package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/apperrors"
	"github.com/craftmatch/CraftMatch/internal/pkg/wallet"
)

// PlaceBid stakes points on an open case. The bidder-count increment, the
// wallet debit and the bid insert form one transaction keyed on the case,
// so two bids can never both take the last slot and a failed insert rolls
// the debit back.
func (s *Service) PlaceBid(ctx context.Context, caseID, providerID uint, points int) (*models.Bid, error) {
	if points <= 0 {
		return nil, apperrors.Validation("a bid must stake a positive number of points")
	}

	var bid *models.Bid
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caseRepo := repository.NewCaseRepository(tx)
		bidRepo := repository.NewBidRepository(tx)

		c, err := caseRepo.GetByID(caseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("case not found")
			}
			return apperrors.Internal("failed to load case", err)
		}

		if c.CustomerID == providerID {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "you cannot bid on your own case")
		}
		if !c.IsOpenForBids() {
			if c.AssignmentType == models.AssignmentSpecific {
				return apperrors.Conflict("this case is offered directly and not open for bidding")
			}
			return apperrors.Conflict("this case is no longer open for bidding")
		}

		exists, err := bidRepo.HasBid(caseID, providerID)
		if err != nil {
			return apperrors.Internal("failed to check existing bids", err)
		}
		if exists {
			return apperrors.Conflict("you already placed a bid on this case")
		}

		ok, err := caseRepo.ReserveBidSlot(caseID)
		if err != nil {
			return apperrors.Internal("failed to reserve bid slot", err)
		}
		if !ok {
			return apperrors.Conflict("all bid slots for this case are taken")
		}

		// Own increment is visible inside the transaction; this is the
		// 1-based insertion order.
		var order int
		if err := tx.Model(&models.Case{}).Where("id = ?", caseID).
			Select("current_bidders").Row().Scan(&order); err != nil {
			return apperrors.Internal("failed to read bid order", err)
		}

		ok, err = wallet.Debit(tx, providerID, points, models.PointReasonBidPlaced, &caseID, nil)
		if err != nil {
			return apperrors.Internal("failed to stake points", err)
		}
		if !ok {
			return apperrors.Forbidden(apperrors.ReasonInsufficientPoints, "your point balance does not cover this bid")
		}

		b := &models.Bid{
			CaseID:     caseID,
			ProviderID: providerID,
			PointsBid:  points,
			BidStatus:  models.BidStatusPending,
			BidOrder:   order,
		}
		created, err := bidRepo.CreateIfAbsent(b)
		if err != nil {
			return apperrors.Internal("failed to store bid", err)
		}
		if !created {
			return apperrors.Conflict("you already placed a bid on this case")
		}

		bid = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// SelectWinner is the customer's irrevocable choice of one bid. In a
// single transaction the case transitions to accepted with the winner's
// provider, the chosen bid becomes won and every other bid becomes lost
// with 80% of its stake refunded; a refund failure aborts the whole
// selection.
func (s *Service) SelectWinner(ctx context.Context, caseID, bidID, customerID uint) (*models.Case, error) {
	var (
		selected *models.Case
		winner   *models.Bid
		losers   []models.Bid
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caseRepo := repository.NewCaseRepository(tx)
		bidRepo := repository.NewBidRepository(tx)

		b, err := bidRepo.GetByID(bidID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("bid not found")
			}
			return apperrors.Internal("failed to load bid", err)
		}
		if b.CaseID != caseID {
			return apperrors.NotFound("bid does not belong to this case")
		}

		c, err := caseRepo.GetByID(caseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("case not found")
			}
			return apperrors.Internal("failed to load case", err)
		}
		if c.CustomerID != customerID {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "only the case's customer can select a winner")
		}

		now := time.Now()
		ok, err := caseRepo.Transition(caseID, models.CaseStatusPending, models.CaseStatusAccepted, map[string]interface{}{
			"provider_id": b.ProviderID,
			"accepted_at": now,
		})
		if err != nil {
			return apperrors.Internal("failed to accept case", err)
		}
		if !ok {
			return apperrors.Conflict("a winner was already selected for this case")
		}

		ok, err = bidRepo.UpdateStatus(b.ID, models.BidStatusPending, models.BidStatusWon)
		if err != nil {
			return apperrors.Internal("failed to mark winning bid", err)
		}
		if !ok {
			return apperrors.Conflict("the chosen bid was already settled")
		}

		pending, err := bidRepo.ListByCaseAndStatus(caseID, models.BidStatusPending)
		if err != nil {
			return apperrors.Internal("failed to load losing bids", err)
		}
		for _, loser := range pending {
			ok, err := bidRepo.UpdateStatus(loser.ID, models.BidStatusPending, models.BidStatusLost)
			if err != nil {
				return apperrors.Internal("failed to mark losing bid", err)
			}
			if !ok {
				return apperrors.Conflict("a losing bid was settled concurrently")
			}
			refund := loser.LoserRefund()
			if refund > 0 {
				loserBidID := loser.ID
				if err := wallet.Credit(tx, loser.ProviderID, refund, models.PointReasonBidRefund, &caseID, &loserBidID); err != nil {
					return apperrors.Internal("failed to refund losing bid", err)
				}
			}
		}

		c.Status = models.CaseStatusAccepted
		c.ProviderID = &b.ProviderID
		c.AcceptedAt = &now
		selected = c
		winner = b
		losers = pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(winner.ProviderID, models.NotificationBidWon,
		fmt.Sprintf("Your bid won the case %q", selected.Title), selected.ID)
	for _, loser := range losers {
		s.dispatcher.Dispatch(loser.ProviderID, models.NotificationBidLost,
			fmt.Sprintf("Your bid on %q did not win; %d points were refunded", selected.Title, loser.LoserRefund()), selected.ID)
	}
	return selected, nil
}

// ListBids returns the bids of a case in display order.
func (s *Service) ListBids(ctx context.Context, caseID uint) ([]models.Bid, error) {
	bids, err := repository.NewBidRepository(s.db.WithContext(ctx)).GetByCaseID(caseID)
	if err != nil {
		return nil, apperrors.Internal("failed to list bids", err)
	}
	return bids, nil
}

// voidPendingBids settles every pending bid of the case with a full
// refund; used when a case is taken directly or cancelled.
func (s *Service) voidPendingBids(tx *gorm.DB, c *models.Case, reason string) ([]models.Bid, error) {
	bidRepo := repository.NewBidRepository(tx)

	pending, err := bidRepo.ListByCaseAndStatus(c.ID, models.BidStatusPending)
	if err != nil {
		return nil, apperrors.Internal("failed to load pending bids", err)
	}
	for _, b := range pending {
		ok, err := bidRepo.UpdateStatus(b.ID, models.BidStatusPending, models.BidStatusRefunded)
		if err != nil {
			return nil, apperrors.Internal("failed to void bid", err)
		}
		if !ok {
			return nil, apperrors.Conflict("a bid was settled concurrently")
		}
		bidID := b.ID
		if err := wallet.Credit(tx, b.ProviderID, b.PointsBid, reason, &c.ID, &bidID); err != nil {
			return nil, apperrors.Internal("failed to refund voided bid", err)
		}
	}
	return pending, nil
}

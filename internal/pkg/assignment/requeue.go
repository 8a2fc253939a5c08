package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/apperrors"
)

// DeclineCase lets the directly-offered provider turn a case down. The
// decliner is recorded in the queue and permanently excluded from being
// re-offered this case; the case itself is republished to the open queue
// (or terminally declined when the customer opted out of requeueing).
func (s *Service) DeclineCase(ctx context.Context, caseID, providerID uint, reason string) (*models.Case, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("a decline reason is required")
	}

	var declined *models.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repository.NewCaseRepository(tx).GetByID(caseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("case not found")
			}
			return apperrors.Internal("failed to load case", err)
		}

		if c.Status != models.CaseStatusPending {
			return apperrors.Conflict("this case is no longer pending")
		}
		if !c.IsOfferedTo(providerID) {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "this case is not offered to you")
		}

		if err := s.requeue(tx, c, providerID, reason); err != nil {
			return err
		}
		declined = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(declined.CustomerID, models.NotificationCaseRequeued,
		fmt.Sprintf("The provider declined your case %q (%s); it was re-offered to others", declined.Title, reason),
		declined.ID)
	return declined, nil
}

// ExpireOffers treats direct offers older than the given window as
// implicit declines and requeues them with reason "expired". Invoked
// periodically by the scheduler; each case takes the requeue path in its
// own transaction so one conflicted case cannot block the rest.
func (s *Service) ExpireOffers(ctx context.Context, window time.Duration, limit int) (int, error) {
	db := s.db.WithContext(ctx)
	cutoff := time.Now().Add(-window)

	stale, err := repository.NewCaseRepository(db).ListExpiredOffers(cutoff, limit)
	if err != nil {
		return 0, apperrors.Internal("failed to list expired offers", err)
	}

	expired := 0
	for _, c := range stale {
		c := c
		target := *c.TargetProviderID
		err := db.Transaction(func(tx *gorm.DB) error {
			return s.requeue(tx, &c, target, models.RequeueReasonExpired)
		})
		if err != nil {
			// A concurrent accept or decline beat the sweep; nothing to do.
			if apperrors.IsKind(err, apperrors.KindConflict) {
				continue
			}
			return expired, err
		}
		expired++

		s.dispatcher.Dispatch(c.CustomerID, models.NotificationCaseRequeued,
			fmt.Sprintf("The offer for your case %q expired; it was re-offered to others", c.Title), c.ID)
		log.Infof("[Assignment] offer for case %d expired, provider %d excluded", c.ID, target)
	}
	return expired, nil
}

// requeue performs the shared decline path inside the caller's
// transaction: withdraw the offer (or terminate the case when requeueing
// is disallowed) and record the decliner with the next queue position.
func (s *Service) requeue(tx *gorm.DB, c *models.Case, declinerID uint, reason string) error {
	caseRepo := repository.NewCaseRepository(tx)

	availableToAll := c.AllowRequeue
	if c.AllowRequeue {
		ok, err := caseRepo.ClearOffer(c.ID, declinerID, reason)
		if err != nil {
			return apperrors.Internal("failed to requeue case", err)
		}
		if !ok {
			return apperrors.Conflict("the case changed state before it could be requeued")
		}
		c.AssignmentType = models.AssignmentOpen
		c.TargetProviderID = nil
		c.OfferedAt = nil
		c.DeclineReason = &reason
	} else {
		ok, err := caseRepo.Transition(c.ID, models.CaseStatusPending, models.CaseStatusDeclined, map[string]interface{}{
			"decline_reason":     reason,
			"target_provider_id": nil,
			"offered_at":         nil,
		})
		if err != nil {
			return apperrors.Internal("failed to decline case", err)
		}
		if !ok {
			return apperrors.Conflict("the case changed state before it could be declined")
		}
		c.Status = models.CaseStatusDeclined
		c.TargetProviderID = nil
		c.OfferedAt = nil
		c.DeclineReason = &reason
	}

	entry := &models.QueueEntry{
		CaseID:             c.ID,
		OriginalProviderID: declinerID,
		Reason:             reason,
		AvailableToAll:     availableToAll,
	}
	if err := repository.NewQueueRepository(tx).Append(entry); err != nil {
		return apperrors.Internal("failed to append queue entry", err)
	}
	return nil
}

// AvailableFromQueue returns requeued cases the provider may take,
// earliest-declined first. Cases the provider declined earlier never
// appear.
func (s *Service) AvailableFromQueue(ctx context.Context, providerID uint, limit int) ([]models.Case, error) {
	if limit <= 0 {
		limit = 20
	}
	cases, err := repository.NewQueueRepository(s.db.WithContext(ctx)).AvailableCases(providerID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to read the case queue", err)
	}
	return cases, nil
}

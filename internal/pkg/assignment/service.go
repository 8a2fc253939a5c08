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
	"github.com/craftmatch/CraftMatch/internal/pkg/notify"
	"github.com/craftmatch/CraftMatch/internal/pkg/trial"
)

// Service is the case assignment and bidding engine. Every state-changing
// operation is safe under arbitrary interleaving of concurrent requests:
// transitions and counter mutations are conditional updates, and steps
// touching more than one entity share a single transaction.
type Service struct {
	db         *gorm.DB
	dispatcher notify.Dispatcher
}

// NewService creates the engine with an explicit notification dispatcher.
func NewService(db *gorm.DB, dispatcher notify.Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

// NewServiceFromDB creates the engine with the default dispatcher.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(db, notify.NewDispatcher(db))
}

// CreateCaseInput carries the customer's request for a new case.
type CreateCaseInput struct {
	CustomerID       uint
	ServiceType      string
	Title            string
	Description      string
	AssignmentType   models.AssignmentType
	TargetProviderID *uint
	MaxBidders       int
	AllowRequeue     *bool
}

// CreateCase validates and stores a new pending case. A specific
// assignment is offered directly to the named provider, who is notified.
func (s *Service) CreateCase(ctx context.Context, in CreateCaseInput) (*models.Case, error) {
	db := s.db.WithContext(ctx)

	if in.AssignmentType == "" {
		in.AssignmentType = models.AssignmentOpen
	}
	if !in.AssignmentType.IsValid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown assignment type %q", in.AssignmentType))
	}

	c := models.NewCase(in.CustomerID, in.ServiceType, in.Title, in.Description, in.AssignmentType)
	if in.MaxBidders > 0 {
		c.MaxBidders = in.MaxBidders
	}
	if in.AllowRequeue != nil {
		c.AllowRequeue = *in.AllowRequeue
	}

	if in.AssignmentType == models.AssignmentSpecific {
		if in.TargetProviderID == nil || *in.TargetProviderID == 0 {
			return nil, apperrors.Validation("a specific assignment requires a target provider")
		}
		if *in.TargetProviderID == in.CustomerID {
			return nil, apperrors.Forbidden(apperrors.ReasonSelfAssignment, "you cannot assign a case to yourself")
		}
		target, err := repository.NewUserRepository(db).GetByID(*in.TargetProviderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NotFound("target provider not found")
			}
			return nil, apperrors.Internal("failed to load target provider", err)
		}
		if !target.IsProvider() || !target.IsActive() {
			return nil, apperrors.Validation("target user cannot take cases")
		}
		now := time.Now()
		c.TargetProviderID = in.TargetProviderID
		c.OfferedAt = &now
	}

	if err := c.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if err := repository.NewCaseRepository(db).Create(c); err != nil {
		return nil, apperrors.Internal("failed to create case", err)
	}

	if c.TargetProviderID != nil {
		s.dispatcher.Dispatch(*c.TargetProviderID, models.NotificationCaseOffer,
			fmt.Sprintf("New %s case offered to you: %s", c.ServiceType, c.Title), c.ID)
	}
	return c, nil
}

// AcceptCase gives the provider exclusive ownership of a pending case.
// The trial quota increment and the status transition commit or roll back
// together, and pending bids from other providers are voided with a full
// refund.
func (s *Service) AcceptCase(ctx context.Context, caseID, providerID uint) (*models.Case, error) {
	var (
		accepted *models.Case
		voided   []models.Bid
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caseRepo := repository.NewCaseRepository(tx)

		c, err := caseRepo.GetByID(caseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("case not found")
			}
			return apperrors.Internal("failed to load case", err)
		}

		if c.CustomerID == providerID {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "you cannot accept your own case")
		}
		if c.Status != models.CaseStatusPending {
			return apperrors.Conflict("this case is no longer open for acceptance")
		}
		if c.AssignmentType == models.AssignmentSpecific && !c.IsOfferedTo(providerID) {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "this case is offered to a different provider")
		}

		declined, err := repository.NewQueueRepository(tx).HasDeclined(caseID, providerID)
		if err != nil {
			return apperrors.Internal("failed to check queue history", err)
		}
		if declined {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "you declined this case earlier")
		}

		decision, err := trial.CanAccept(tx, providerID)
		if err != nil {
			return apperrors.Internal("failed to evaluate trial quota", err)
		}
		if !decision.Allowed {
			return apperrors.Forbidden(decision.Reason, "your trial does not allow accepting more cases")
		}

		now := time.Now()
		ok, err := caseRepo.Transition(caseID, models.CaseStatusPending, models.CaseStatusAccepted, map[string]interface{}{
			"provider_id":        providerID,
			"accepted_at":        now,
			"target_provider_id": nil,
			"offered_at":         nil,
		})
		if err != nil {
			return apperrors.Internal("failed to accept case", err)
		}
		if !ok {
			return apperrors.Conflict("this case was already accepted by another provider")
		}

		// Re-checked conditionally: a concurrent acceptance may have burned
		// the last trial case between the gate check and here.
		ok, err = trial.RecordAcceptance(tx, providerID)
		if err != nil {
			return apperrors.Internal("failed to record trial usage", err)
		}
		if !ok {
			return apperrors.Forbidden(apperrors.ReasonCasesLimit, "your trial does not allow accepting more cases")
		}

		voided, err = s.voidPendingBids(tx, c, models.PointReasonVoidRefund)
		if err != nil {
			return err
		}

		c.Status = models.CaseStatusAccepted
		c.ProviderID = &providerID
		c.AcceptedAt = &now
		c.TargetProviderID = nil
		c.OfferedAt = nil
		accepted = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(accepted.CustomerID, models.NotificationCaseAccepted,
		fmt.Sprintf("Your case %q was accepted", accepted.Title), accepted.ID)
	for _, b := range voided {
		s.dispatcher.Dispatch(b.ProviderID, models.NotificationBidRefunded,
			fmt.Sprintf("Your bid on %q was refunded: the case was taken directly", accepted.Title), accepted.ID)
	}
	return accepted, nil
}

// CancelCase lets the customer terminate their own pending or accepted
// case. Pending bids are voided with a full refund.
func (s *Service) CancelCase(ctx context.Context, caseID, customerID uint) (*models.Case, error) {
	var (
		cancelled      *models.Case
		withdrawnOffer *uint
		voided         []models.Bid
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caseRepo := repository.NewCaseRepository(tx)

		c, err := caseRepo.GetByID(caseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("case not found")
			}
			return apperrors.Internal("failed to load case", err)
		}
		if c.CustomerID != customerID {
			return apperrors.Forbidden(apperrors.ReasonWrongActor, "only the case's customer can cancel it")
		}
		if !c.Status.CanTransitionTo(models.CaseStatusCancelled) {
			return apperrors.Conflict(fmt.Sprintf("a %s case cannot be cancelled", c.Status))
		}

		ok, err := caseRepo.Transition(caseID, c.Status, models.CaseStatusCancelled, map[string]interface{}{
			"target_provider_id": nil,
			"offered_at":         nil,
		})
		if err != nil {
			return apperrors.Internal("failed to cancel case", err)
		}
		if !ok {
			return apperrors.Conflict("the case changed state before it could be cancelled")
		}

		voided, err = s.voidPendingBids(tx, c, models.PointReasonVoidRefund)
		if err != nil {
			return err
		}

		withdrawnOffer = c.TargetProviderID
		c.Status = models.CaseStatusCancelled
		c.TargetProviderID = nil
		c.OfferedAt = nil
		cancelled = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled.ProviderID != nil {
		s.dispatcher.Dispatch(*cancelled.ProviderID, models.NotificationCaseCancelled,
			fmt.Sprintf("Case %q was cancelled by the customer", cancelled.Title), cancelled.ID)
	} else if withdrawnOffer != nil {
		s.dispatcher.Dispatch(*withdrawnOffer, models.NotificationCaseCancelled,
			fmt.Sprintf("The offer for case %q was withdrawn", cancelled.Title), cancelled.ID)
	}
	for _, b := range voided {
		s.dispatcher.Dispatch(b.ProviderID, models.NotificationBidRefunded,
			fmt.Sprintf("Your bid on %q was refunded: the case was cancelled", cancelled.Title), cancelled.ID)
	}
	return cancelled, nil
}

// ListCases returns a filtered, paginated case listing.
func (s *Service) ListCases(ctx context.Context, filter repository.CaseFilter) ([]models.Case, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperrors.Validation(fmt.Sprintf("unknown case status %q", filter.Status))
	}
	cases, total, err := repository.NewCaseRepository(s.db.WithContext(ctx)).List(filter)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list cases", err)
	}
	return cases, total, nil
}

// GetCaseByUUID resolves a case by its external identifier.
func (s *Service) GetCaseByUUID(ctx context.Context, uuid string) (*models.Case, error) {
	c, err := repository.NewCaseRepository(s.db.WithContext(ctx)).GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("case not found")
		}
		return nil, apperrors.Internal("failed to load case", err)
	}
	return c, nil
}

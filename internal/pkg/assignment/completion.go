package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/apperrors"
)

// IncomeInput is the provider's self-reported payment for a completed
// case.
type IncomeInput struct {
	Amount        float64
	PaymentMethod string
	Notes         string
}

// CompletionResult reports the outcome of CompleteCase. The transition is
// the primary contract: IncomeWarning carries a failed income capture
// without failing the completion, so the client can retry income entry
// alone.
type CompletionResult struct {
	Case           *models.Case
	IncomeRecorded bool
	IncomeWarning  string
}

// CompleteCase finalizes an accepted case by its assigned provider and
// records the self-reported income at most once.
func (s *Service) CompleteCase(ctx context.Context, caseID, providerID uint, notes string, income *IncomeInput) (*CompletionResult, error) {
	db := s.db.WithContext(ctx)
	caseRepo := repository.NewCaseRepository(db)

	c, err := caseRepo.GetByID(caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("case not found")
		}
		return nil, apperrors.Internal("failed to load case", err)
	}
	if !c.IsAssignedTo(providerID) {
		return nil, apperrors.Forbidden(apperrors.ReasonWrongActor, "only the assigned provider can complete this case")
	}

	now := time.Now()
	var rec *models.IncomeRecord
	if income != nil {
		rec = &models.IncomeRecord{
			CaseID:        caseID,
			ProviderID:    providerID,
			Amount:        income.Amount,
			PaymentMethod: income.PaymentMethod,
			RecordedAt:    now,
			Notes:         income.Notes,
		}
		if err := rec.Validate(); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
	}

	ok, err := caseRepo.Transition(caseID, models.CaseStatusAccepted, models.CaseStatusCompleted, map[string]interface{}{
		"completed_at":     now,
		"completion_notes": notes,
	})
	if err != nil {
		return nil, apperrors.Internal("failed to complete case", err)
	}
	if !ok {
		// The provider may be retrying after a completion whose income
		// capture failed. Re-running the income insert is safe: it lands
		// at most once per case.
		current, err := caseRepo.GetByID(caseID)
		if err != nil {
			return nil, apperrors.Internal("failed to load case", err)
		}
		if current.Status == models.CaseStatusCompleted && rec != nil {
			result := &CompletionResult{Case: current}
			created, err := repository.NewIncomeRepository(db).CreateIfAbsent(rec)
			if err != nil {
				result.IncomeWarning = "the case was completed but the income could not be recorded; retry income entry"
				log.Errorf("[Assignment] income capture failed for case %d: %v", caseID, err)
			} else {
				result.IncomeRecorded = created
			}
			return result, nil
		}
		return nil, apperrors.Conflict("this case is not in an accepted state")
	}

	c.Status = models.CaseStatusCompleted
	c.CompletedAt = &now
	c.CompletionNotes = notes
	result := &CompletionResult{Case: c}

	// Income capture is deliberately outside the transition: its failure
	// surfaces as a warning, never as a rolled-back completion.
	if rec != nil {
		// A false "created" means an earlier attempt already recorded it,
		// which is exactly what an idempotent retry should see.
		if _, err := repository.NewIncomeRepository(db).CreateIfAbsent(rec); err != nil {
			result.IncomeWarning = "the case was completed but the income could not be recorded; retry income entry"
			log.Errorf("[Assignment] income capture failed for case %d: %v", caseID, err)
		} else {
			result.IncomeRecorded = true
		}
	}

	s.dispatcher.Dispatch(c.CustomerID, models.NotificationCaseCompleted,
		fmt.Sprintf("Your case %q was completed", c.Title), c.ID)
	return result, nil
}

// IncomeSummary aggregates a provider's recorded income for one year:
// per-month totals plus totals by payment method. Pure projections over
// the income records.
type IncomeSummary struct {
	Year            int                             `json:"year"`
	Total           float64                         `json:"total"`
	Months          []repository.MonthlyIncome      `json:"months"`
	ByPaymentMethod []repository.PaymentMethodTotal `json:"by_payment_method"`
}

// IncomeSummaryForYear builds the summary for the given provider.
func (s *Service) IncomeSummaryForYear(ctx context.Context, providerID uint, year int) (*IncomeSummary, error) {
	if year < 2000 || year > 2200 {
		return nil, apperrors.Validation(fmt.Sprintf("year %d is out of range", year))
	}

	repo := repository.NewIncomeRepository(s.db.WithContext(ctx))
	months, err := repo.MonthlyTotals(providerID, year)
	if err != nil {
		return nil, apperrors.Internal("failed to aggregate monthly income", err)
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	byMethod, err := repo.TotalsByPaymentMethod(providerID, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, apperrors.Internal("failed to aggregate income by payment method", err)
	}

	summary := &IncomeSummary{Year: year, Months: months, ByPaymentMethod: byMethod}
	for _, m := range months {
		summary.Total += m.Total
	}
	return summary, nil
}

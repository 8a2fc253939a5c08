package trial

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/internal/pkg/apperrors"
)

// Reason values explaining a gate decision.
const (
	ReasonNone        = "none"
	ReasonCasesLimit  = apperrors.ReasonCasesLimit
	ReasonTimeLimit   = apperrors.ReasonTimeLimit
	ReasonNotFreeTier = "not_free_tier"
)

// Decision is the outcome of a trial gate check.
type Decision struct {
	Allowed bool
	Reason  string
}

// CanAccept decides whether the provider may accept another case right
// now. Providers off the metered plan are exempt entirely. The decision
// is advisory only; RecordAcceptance re-checks the quota conditionally
// inside the accept transaction.
func CanAccept(db *gorm.DB, providerID uint) (Decision, error) {
	return CanAcceptAt(db, providerID, time.Now())
}

// CanAcceptAt is CanAccept against an explicit clock, for the sweep and
// for tests.
func CanAcceptAt(db *gorm.DB, providerID uint, now time.Time) (Decision, error) {
	settings, err := models.GetOrCreateUserSettings(db, providerID)
	if err != nil {
		return Decision{}, err
	}
	if !settings.IsMetered() {
		return Decision{Allowed: true, Reason: ReasonNotFreeTier}, nil
	}

	ts, err := models.GetOrCreateTrialState(db, providerID)
	if err != nil {
		return Decision{}, err
	}

	// The case quota outranks the time window when both are exhausted.
	if ts.OverCaseLimit() {
		return Decision{Allowed: false, Reason: ReasonCasesLimit}, nil
	}
	if ts.Expired || ts.OverTimeLimit(now) {
		return Decision{Allowed: false, Reason: ReasonTimeLimit}, nil
	}
	return Decision{Allowed: true, Reason: ReasonNone}, nil
}

// RecordAcceptance burns one trial case inside the caller's accept
// transaction. The quota guard and the increment are a single conditional
// statement: false means the quota raced to exhaustion and the whole
// acceptance must roll back. Non-metered providers pass through.
func RecordAcceptance(tx *gorm.DB, providerID uint) (bool, error) {
	settings, err := models.GetOrCreateUserSettings(tx, providerID)
	if err != nil {
		return false, err
	}
	if !settings.IsMetered() {
		return true, nil
	}

	if _, err := models.GetOrCreateTrialState(tx, providerID); err != nil {
		return false, err
	}

	res := tx.Model(&models.TrialState{}).
		Where("provider_id = ? AND expired = ? AND cases_used < ?",
			providerID, false, models.TrialCaseLimit).
		UpdateColumn("cases_used", gorm.Expr("cases_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Reset clears a provider's trial state; an explicit administrative
// action, never triggered by the engine itself.
func Reset(db *gorm.DB, providerID uint) error {
	return db.Model(&models.TrialState{}).
		Where("provider_id = ?", providerID).
		Updates(map[string]interface{}{
			"cases_used": 0,
			"started_at": time.Now(),
			"expired":    false,
			"expired_at": nil,
		}).Error
}

// Sweep re-evaluates all metered providers' trial windows, flipping the
// sticky expired flag and disabling the outbound-contact channel of
// everyone over a limit. Returns how many trials were expired. Invoked
// periodically by the scheduler.
func Sweep(db *gorm.DB, now time.Time) (int, error) {
	var candidates []models.TrialState
	windowCutoff := now.Add(-models.TrialWindow)
	err := db.Where("expired = ? AND (cases_used >= ? OR started_at <= ?)",
		false, models.TrialCaseLimit, windowCutoff).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ts := range candidates {
		res := db.Model(&models.TrialState{}).
			Where("id = ? AND expired = ?", ts.ID, false).
			Updates(map[string]interface{}{
				"expired":    true,
				"expired_at": now,
			})
		if res.Error != nil {
			return expired, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		expired++

		if err := db.Model(&models.UserSettings{}).
			Where("user_id = ?", ts.ProviderID).
			Update("contact_enabled", false).Error; err != nil {
			log.Errorf("[Trial] failed to disable contact channel for provider %d: %v", ts.ProviderID, err)
		}
	}
	return expired, nil
}

package repository

import (
	"time"

	"github.com/craftmatch/CraftMatch/app/models"
	"gorm.io/gorm"
)

// caseRepository implements the CaseRepository interface
type caseRepository struct {
	db *gorm.DB
}

// NewCaseRepository creates a new case repository instance
func NewCaseRepository(db *gorm.DB) CaseRepository {
	return &caseRepository{db: db}
}

// Create stores a new case
func (r *caseRepository) Create(c *models.Case) error {
	return r.db.Create(c).Error
}

// GetByID retrieves a case by its numeric ID
func (r *caseRepository) GetByID(id uint) (*models.Case, error) {
	var c models.Case
	err := r.db.First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByUUID retrieves a case by its external UUID
func (r *caseRepository) GetByUUID(uuid string) (*models.Case, error) {
	var c models.Case
	err := r.db.Where("uuid = ?", uuid).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a filtered, paginated case listing plus the total count
// for the filter.
func (r *caseRepository) List(filter CaseFilter) ([]models.Case, int64, error) {
	query := r.db.Model(&models.Case{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.ProviderID != 0 {
		query = query.Where("provider_id = ?", filter.ProviderID)
	}
	if filter.OnlyUnassigned {
		query = query.Where("provider_id IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	var cases []models.Case
	err := query.Order("created_at DESC").Find(&cases).Error
	return cases, total, err
}

// Count returns the total number of cases
func (r *caseRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Case{}).Count(&count).Error
	return count, err
}

// Transition performs the conditional status update. Zero affected rows
// means another actor changed the status first; callers map that to a
// conflict instead of retrying blindly.
func (r *caseRepository) Transition(id uint, from, to models.CaseStatus, updates map[string]interface{}) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, ErrInvalidTransition
	}

	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	tx := r.db.Model(&models.Case{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ReserveBidSlot claims one bidder slot. The guard and the increment run
// in a single statement so two bidders can never both take the last slot.
func (r *caseRepository) ReserveBidSlot(id uint) (bool, error) {
	tx := r.db.Model(&models.Case{}).
		Where("id = ? AND status = ? AND assignment_type = ? AND current_bidders < max_bidders",
			id, models.CaseStatusPending, models.AssignmentOpen).
		Updates(map[string]interface{}{
			"current_bidders": gorm.Expr("current_bidders + 1"),
			"updated_at":      time.Now(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ClearOffer withdraws a direct offer from a still-pending specific case
// and republishes it as an open assignment.
func (r *caseRepository) ClearOffer(id uint, targetProviderID uint, declineReason string) (bool, error) {
	tx := r.db.Model(&models.Case{}).
		Where("id = ? AND status = ? AND target_provider_id = ?",
			id, models.CaseStatusPending, targetProviderID).
		Updates(map[string]interface{}{
			"assignment_type":    models.AssignmentOpen,
			"target_provider_id": nil,
			"offered_at":         nil,
			"decline_reason":     declineReason,
			"updated_at":         time.Now(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListExpiredOffers returns pending specific cases whose offer window has
// elapsed without the target accepting or declining.
func (r *caseRepository) ListExpiredOffers(cutoff time.Time, limit int) ([]models.Case, error) {
	var cases []models.Case
	err := r.db.
		Where("status = ? AND assignment_type = ? AND target_provider_id IS NOT NULL AND offered_at < ?",
			models.CaseStatusPending, models.AssignmentSpecific, cutoff).
		Order("offered_at ASC").
		Limit(limit).
		Find(&cases).Error
	return cases, err
}

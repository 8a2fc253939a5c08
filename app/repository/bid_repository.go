package repository

import (
	"time"

	"github.com/craftmatch/CraftMatch/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// bidRepository implements the BidRepository interface
type bidRepository struct {
	db *gorm.DB
}

// NewBidRepository creates a new bid repository instance
func NewBidRepository(db *gorm.DB) BidRepository {
	return &bidRepository{db: db}
}

// CreateIfAbsent inserts the bid; a conflicting (case_id, provider_id)
// pair leaves the table untouched and reports false. This is the backstop
// behind the service-level duplicate pre-check.
func (r *bidRepository) CreateIfAbsent(b *models.Bid) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "case_id"},
			{Name: "provider_id"},
		},
		DoNothing: true,
	}).Create(b)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetByID retrieves a bid by its ID
func (r *bidRepository) GetByID(id uint) (*models.Bid, error) {
	var b models.Bid
	err := r.db.First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByCaseID returns all bids on a case in display order
func (r *bidRepository) GetByCaseID(caseID uint) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.Where("case_id = ?", caseID).Order("bid_order ASC").Find(&bids).Error
	return bids, err
}

// HasBid reports whether the provider already bid on the case
func (r *bidRepository) HasBid(caseID, providerID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Bid{}).
		Where("case_id = ? AND provider_id = ?", caseID, providerID).
		Count(&count).Error
	return count > 0, err
}

// ListByCaseAndStatus returns the case's bids holding the given status
func (r *bidRepository) ListByCaseAndStatus(caseID uint, status models.BidStatus) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.Where("case_id = ? AND bid_status = ?", caseID, status).
		Order("bid_order ASC").Find(&bids).Error
	return bids, err
}

// UpdateStatus conditionally settles a bid. Zero affected rows means the
// bid was settled by a competing actor first.
func (r *bidRepository) UpdateStatus(id uint, from, to models.BidStatus) (bool, error) {
	tx := r.db.Model(&models.Bid{}).
		Where("id = ? AND bid_status = ?", id, from).
		Updates(map[string]interface{}{
			"bid_status": to,
			"updated_at": time.Now(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

package repository

import (
	"github.com/craftmatch/CraftMatch/app/models"
	"gorm.io/gorm"
)

// queueRepository implements the QueueRepository interface
type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository creates a new queue repository instance
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

// Append stores the entry and assigns its global queue position from the
// auto-increment row id. A MAX+1 read is a non-locking consistent read in
// InnoDB and hands the same position to concurrent declines; the row id
// is unique by construction.
func (r *queueRepository) Append(entry *models.QueueEntry) error {
	if err := r.db.Create(entry).Error; err != nil {
		return err
	}
	entry.QueuePosition = uint64(entry.ID)
	return r.db.Model(entry).Update("queue_position", entry.QueuePosition).Error
}

// EntriesForCase returns all requeue entries of a case, oldest first
func (r *queueRepository) EntriesForCase(caseID uint) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := r.db.Where("case_id = ?", caseID).
		Order("queue_position ASC").Find(&entries).Error
	return entries, err
}

// HasDeclined reports whether the provider previously declined the case
// (or let its offer expire)
func (r *queueRepository) HasDeclined(caseID, providerID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.QueueEntry{}).
		Where("case_id = ? AND original_provider_id = ?", caseID, providerID).
		Count(&count).Error
	return count > 0, err
}

// AvailableCases joins queue entries against live case status so a case
// re-accepted by someone else can never show up as a stale offer. A
// provider recorded as original_provider on any entry of a case is
// excluded from that case entirely.
func (r *queueRepository) AvailableCases(providerID uint, limit int) ([]models.Case, error) {
	firstPositions := r.db.Model(&models.QueueEntry{}).
		Select("case_id, MIN(queue_position) AS first_position").
		Where("available_to_all = ?", true).
		Group("case_id")

	declined := r.db.Model(&models.QueueEntry{}).
		Select("case_id").
		Where("original_provider_id = ?", providerID)

	var cases []models.Case
	err := r.db.Model(&models.Case{}).
		Joins("JOIN (?) AS q ON q.case_id = cases.id", firstPositions).
		Where("cases.status = ?", models.CaseStatusPending).
		Where("cases.customer_id <> ?", providerID).
		Where("cases.id NOT IN (?)", declined).
		Order("q.first_position ASC").
		Limit(limit).
		Find(&cases).Error
	return cases, err
}

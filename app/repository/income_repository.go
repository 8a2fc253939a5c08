package repository

import (
	"fmt"
	"time"

	"github.com/craftmatch/CraftMatch/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// incomeRepository implements the IncomeRepository interface
type incomeRepository struct {
	db *gorm.DB
}

// NewIncomeRepository creates a new income repository instance
func NewIncomeRepository(db *gorm.DB) IncomeRepository {
	return &incomeRepository{db: db}
}

// CreateIfAbsent inserts the income record unless the case already has
// one; retried completion requests therefore never double-record.
func (r *incomeRepository) CreateIfAbsent(rec *models.IncomeRecord) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "case_id"}},
		DoNothing: true,
	}).Create(rec)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetByCaseID returns the income record of a completed case
func (r *incomeRepository) GetByCaseID(caseID uint) (*models.IncomeRecord, error) {
	var rec models.IncomeRecord
	err := r.db.Where("case_id = ?", caseID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByProviderBetween returns the provider's income records in a range
func (r *incomeRepository) ListByProviderBetween(providerID uint, from, to time.Time) ([]models.IncomeRecord, error) {
	var records []models.IncomeRecord
	err := r.db.Where("provider_id = ? AND recorded_at >= ? AND recorded_at < ?", providerID, from, to).
		Order("recorded_at ASC").Find(&records).Error
	return records, err
}

// MonthlyTotals aggregates a provider's income per calendar month of the
// given year. Bucketing happens in Go over a date-ranged fetch so the
// query stays portable across database engines.
func (r *incomeRepository) MonthlyTotals(providerID uint, year int) ([]MonthlyIncome, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	records, err := r.ListByProviderBetween(providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load income records for %d: %w", year, err)
	}

	buckets := make(map[string]*MonthlyIncome, 12)
	for _, rec := range records {
		month := rec.RecordedAt.UTC().Format("2006-01")
		b, ok := buckets[month]
		if !ok {
			b = &MonthlyIncome{Month: month}
			buckets[month] = b
		}
		b.Total += rec.Amount
		b.Count++
	}

	totals := make([]MonthlyIncome, 0, 12)
	for m := time.January; m <= time.December; m++ {
		key := fmt.Sprintf("%04d-%02d", year, int(m))
		if b, ok := buckets[key]; ok {
			totals = append(totals, *b)
		}
	}
	return totals, nil
}

// TotalsByPaymentMethod aggregates a provider's income per payment method
func (r *incomeRepository) TotalsByPaymentMethod(providerID uint, from, to time.Time) ([]PaymentMethodTotal, error) {
	var totals []PaymentMethodTotal
	err := r.db.Model(&models.IncomeRecord{}).
		Select("payment_method, SUM(amount) AS total, COUNT(*) AS count").
		Where("provider_id = ? AND recorded_at >= ? AND recorded_at < ?", providerID, from, to).
		Group("payment_method").
		Order("payment_method").
		Find(&totals).Error
	return totals, err
}

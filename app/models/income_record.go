package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Payment methods accepted for self-reported income.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
	PaymentMethodOther    = "other"
)

// IncomeRecord captures the self-reported payment for a completed case.
// The unique index on CaseID makes recording idempotent: a retried
// completion request can never produce a second record.
type IncomeRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CaseID        uint      `gorm:"uniqueIndex;not null" json:"case_id"`
	ProviderID    uint      `gorm:"not null;index" json:"provider_id"`
	Amount        float64   `gorm:"not null" json:"amount" validate:"gt=0"`
	PaymentMethod string    `gorm:"type:varchar(30);not null" json:"payment_method" validate:"oneof=cash card transfer other"`
	RecordedAt    time.Time `gorm:"not null" json:"recorded_at"`
	Notes         string    `gorm:"type:text" json:"notes" validate:"max=2000"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *IncomeRecord) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

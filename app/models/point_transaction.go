package models

import (
	"time"
)

// Point ledger directions and reasons.
const (
	PointDirectionDebit  = "debit"
	PointDirectionCredit = "credit"

	PointReasonBidPlaced  = "bid_placed"
	PointReasonBidRefund  = "bid_refund"      // 80% back after losing a decided auction
	PointReasonVoidRefund = "bid_void_refund" // 100% back when a bid is voided
	PointReasonTopUp      = "top_up"
	PointReasonAdjustment = "adjustment"
)

// PointTransaction is one movement on a provider's point balance. The
// balance itself lives on UserSettings and is only mutated through
// conditional updates; the ledger rows exist for audit and statements.
type PointTransaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Direction string    `gorm:"type:varchar(10);not null" json:"direction"`
	Amount    int       `gorm:"not null" json:"amount"`
	Reason    string    `gorm:"type:varchar(30);not null;index" json:"reason"`
	CaseID    *uint     `gorm:"index" json:"case_id,omitempty"`
	BidID     *uint     `gorm:"index" json:"bid_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

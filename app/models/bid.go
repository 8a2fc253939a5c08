package models

import (
	"time"

	"gorm.io/gorm"
)

// BidStatus is the closed settlement enumeration for a bid.
type BidStatus string

const (
	// BidStatusPending is an open bid awaiting the customer's decision.
	BidStatusPending BidStatus = "pending"
	// BidStatusWon marks the single customer-selected bid of a case.
	BidStatusWon BidStatus = "won"
	// BidStatusLost marks a bid that lost a decided auction; losers are
	// refunded 80% of their stake, the remaining 20% is the platform fee.
	BidStatusLost BidStatus = "lost"
	// BidStatusRefunded marks a bid voided outside winner selection
	// (direct acceptance, cancellation); the full stake is returned.
	BidStatusRefunded BidStatus = "refunded"
)

// LoserRefundPercent of the staked points is returned to losing bidders.
const LoserRefundPercent = 80

// Bid is a point-denominated offer by a provider to take an open case.
// The composite unique index enforces at most one bid per provider per
// case; BidOrder is the 1-based insertion sequence within the case and
// exists for stable display ordering only.
type Bid struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CaseID     uint           `gorm:"not null;index:ux_bids_case_provider,unique,priority:1" json:"case_id"`
	ProviderID uint           `gorm:"not null;index:ux_bids_case_provider,unique,priority:2" json:"provider_id"`
	PointsBid  int            `gorm:"not null" json:"points_bid"`
	BidStatus  BidStatus      `gorm:"type:varchar(20);default:'pending';index" json:"bid_status"`
	BidOrder   int            `gorm:"not null" json:"bid_order"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// LoserRefund returns the points credited back when this bid loses a
// decided auction.
func (b *Bid) LoserRefund() int {
	return b.PointsBid * LoserRefundPercent / 100
}

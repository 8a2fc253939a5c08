package models

import (
	"time"
)

// Queue entry reasons recorded when a case re-enters the open queue.
const (
	RequeueReasonDeclined = "declined"
	RequeueReasonExpired  = "expired"
)

// QueueEntry records a decline (or offer expiry) and republishes the case
// to other providers. OriginalProviderID is permanently excluded from
// being re-offered the same case; QueuePosition is a globally monotonic
// counter derived from the row id after insert, giving the queue FIFO
// fairness without a racy max+1 read.
type QueueEntry struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CaseID             uint      `gorm:"not null;index" json:"case_id"`
	OriginalProviderID uint      `gorm:"not null;index" json:"original_provider_id"`
	Reason             string    `gorm:"type:varchar(500)" json:"reason"`
	QueuePosition      uint64    `gorm:"not null;index" json:"queue_position"`
	AvailableToAll     bool      `gorm:"not null" json:"available_to_all"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

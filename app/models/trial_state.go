package models

import (
	"time"

	"gorm.io/gorm"
)

// Trial limits for metered (free-plan) providers: whichever triggers
// first ends the trial.
const (
	TrialCaseLimit = 5
	TrialWindow    = 14 * 24 * time.Hour
)

// TrialState tracks the trial quota of a metered provider. CasesUsed
// counts accepted cases only and is incremented exclusively through a
// conditional update inside the accept transaction; Expired is sticky and
// only an administrative reset clears it.
type TrialState struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ProviderID uint       `gorm:"uniqueIndex;not null" json:"provider_id"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	CasesUsed  int        `gorm:"not null;default:0" json:"cases_used"`
	Expired    bool       `gorm:"not null;default:false;index" json:"expired"`
	ExpiredAt  *time.Time `gorm:"type:timestamp;default:null" json:"expired_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOrCreateTrialState returns the provider's trial state, starting the
// trial window on first access.
func GetOrCreateTrialState(db *gorm.DB, providerID uint) (*TrialState, error) {
	var ts TrialState
	if err := db.Where("provider_id = ?", providerID).First(&ts).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			ts = TrialState{ProviderID: providerID, StartedAt: time.Now()}
			if err := db.Create(&ts).Error; err != nil {
				return nil, err
			}
			return &ts, nil
		}
		return nil, err
	}
	return &ts, nil
}

// OverCaseLimit reports whether the accepted-case quota is used up.
func (ts *TrialState) OverCaseLimit() bool {
	return ts.CasesUsed >= TrialCaseLimit
}

// OverTimeLimit reports whether the trial window has elapsed at the given
// instant.
func (ts *TrialState) OverTimeLimit(now time.Time) bool {
	return now.Sub(ts.StartedAt) >= TrialWindow
}

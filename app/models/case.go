package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseStatus is the closed lifecycle enumeration for a service case.
type CaseStatus string

const (
	CaseStatusPending   CaseStatus = "pending"
	CaseStatusAccepted  CaseStatus = "accepted"
	CaseStatusDeclined  CaseStatus = "declined"
	CaseStatusCompleted CaseStatus = "completed"
	CaseStatusCancelled CaseStatus = "cancelled"
)

// AssignmentType distinguishes open (biddable) cases from ones offered
// directly to a single provider.
type AssignmentType string

const (
	AssignmentOpen     AssignmentType = "open"
	AssignmentSpecific AssignmentType = "specific"
)

const DefaultMaxBidders = 3

// caseTransitions is the exhaustive transition table. Anything not listed
// here is rejected before touching the database.
var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusPending:  {CaseStatusAccepted, CaseStatusDeclined, CaseStatusCancelled},
	CaseStatusAccepted: {CaseStatusCompleted, CaseStatusCancelled},
}

// CanTransitionTo reports whether the status edge from s to target is valid.
func (s CaseStatus) CanTransitionTo(target CaseStatus) bool {
	for _, allowed := range caseTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s CaseStatus) IsTerminal() bool {
	return len(caseTransitions[s]) == 0
}

// IsValid reports whether s is a known status value.
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusPending, CaseStatusAccepted, CaseStatusDeclined, CaseStatusCompleted, CaseStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether t is a known assignment type.
func (t AssignmentType) IsValid() bool {
	return t == AssignmentOpen || t == AssignmentSpecific
}

// Case is a single customer service request. The status column is owned by
// the case repository and mutated only through conditional transitions;
// ProviderID is non-null exactly while the case is accepted or completed.
// TargetProviderID holds the current offer target of a specific assignment
// and is cleared on acceptance or requeue.
type Case struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UUID             string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Status           CaseStatus     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	AssignmentType   AssignmentType `gorm:"type:varchar(20);default:'open'" json:"assignment_type"`
	CustomerID       uint           `gorm:"not null;index" json:"customer_id"`
	ProviderID       *uint          `gorm:"index" json:"provider_id,omitempty"`
	TargetProviderID *uint          `gorm:"index" json:"target_provider_id,omitempty"`
	ServiceType      string         `gorm:"type:varchar(100)" json:"service_type" validate:"required,min=2,max=100"`
	Title            string         `gorm:"type:varchar(200)" json:"title" validate:"required,min=3,max=200"`
	Description      string         `gorm:"type:text" json:"description" validate:"required,min=10,max=5000"`
	MaxBidders       int            `gorm:"not null;default:3" json:"max_bidders" validate:"min=1,max=20"`
	CurrentBidders   int            `gorm:"not null;default:0" json:"current_bidders"`
	// No default tag: gorm drops zero-value fields with one, which would
	// silently turn an opt-out (false) into the column default.
	AllowRequeue    bool           `gorm:"not null" json:"allow_requeue"`
	DeclineReason   *string        `gorm:"type:varchar(500)" json:"decline_reason,omitempty"`
	CompletionNotes string         `gorm:"type:text" json:"completion_notes,omitempty"`
	OfferedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"offered_at,omitempty"`
	AcceptedAt      *time.Time     `gorm:"type:timestamp;default:null" json:"accepted_at,omitempty"`
	CompletedAt     *time.Time     `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Case) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// NewCase builds a pending case with defaults applied. Callers persist it
// through the case repository.
func NewCase(customerID uint, serviceType, title, description string, assignmentType AssignmentType) *Case {
	return &Case{
		UUID:           uuid.NewString(),
		Status:         CaseStatusPending,
		AssignmentType: assignmentType,
		CustomerID:     customerID,
		ServiceType:    serviceType,
		Title:          title,
		Description:    description,
		MaxBidders:     DefaultMaxBidders,
		AllowRequeue:   true,
	}
}

// IsOpenForBids reports whether providers may currently place bids.
func (c *Case) IsOpenForBids() bool {
	return c.Status == CaseStatusPending && c.AssignmentType == AssignmentOpen
}

// IsOfferedTo reports whether the case is currently offered directly to the
// given provider.
func (c *Case) IsOfferedTo(providerID uint) bool {
	return c.Status == CaseStatusPending &&
		c.TargetProviderID != nil && *c.TargetProviderID == providerID
}

// IsAssignedTo reports whether the given provider owns the accepted case.
func (c *Case) IsAssignedTo(providerID uint) bool {
	return c.ProviderID != nil && *c.ProviderID == providerID
}

package repository

import (
	"time"

	"github.com/craftmatch/CraftMatch/app/models"
	"gorm.io/gorm"
)

// CaseFilter narrows and paginates case listings.
type CaseFilter struct {
	Status         models.CaseStatus
	CustomerID     uint
	ProviderID     uint
	OnlyUnassigned bool
	Offset         int
	Limit          int
}

// CaseRepository owns the Case entity. The status column is mutated only
// through Transition and the dedicated conditional helpers; every one of
// them reports false instead of an error when the guarded condition did
// not hold anymore, so callers can map a lost race to a conflict.
type CaseRepository interface {
	Create(c *models.Case) error
	GetByID(id uint) (*models.Case, error)
	GetByUUID(uuid string) (*models.Case, error)
	List(filter CaseFilter) ([]models.Case, int64, error)
	Count() (int64, error)

	// Transition performs "set status=to where id=? and status=from"
	// plus the given extra column updates in one conditional statement.
	Transition(id uint, from, to models.CaseStatus, updates map[string]interface{}) (bool, error)
	// ReserveBidSlot atomically increments current_bidders while the case
	// is pending, open and below max_bidders.
	ReserveBidSlot(id uint) (bool, error)
	// ClearOffer removes the direct offer from a still-pending specific
	// case and flips it to open assignment, recording the decline reason.
	ClearOffer(id uint, targetProviderID uint, declineReason string) (bool, error)
	// ListExpiredOffers returns pending specific cases whose direct offer
	// was made before the cutoff and was neither accepted nor declined.
	ListExpiredOffers(cutoff time.Time, limit int) ([]models.Case, error)
}

// BidRepository records bids against open cases.
type BidRepository interface {
	// CreateIfAbsent inserts the bid unless the provider already bid on
	// the case; the composite unique index is the arbiter under races.
	CreateIfAbsent(b *models.Bid) (bool, error)
	GetByID(id uint) (*models.Bid, error)
	GetByCaseID(caseID uint) ([]models.Bid, error)
	HasBid(caseID, providerID uint) (bool, error)
	ListByCaseAndStatus(caseID uint, status models.BidStatus) ([]models.Bid, error)
	// UpdateStatus conditionally moves a bid from one settlement status
	// to another.
	UpdateStatus(id uint, from, to models.BidStatus) (bool, error)
}

// QueueRepository manages requeue entries and the provider-facing view of
// re-offered cases.
type QueueRepository interface {
	// Append stores the entry with queue_position derived from the row id,
	// unique under concurrent declines. Must run inside the decline
	// transaction.
	Append(entry *models.QueueEntry) error
	EntriesForCase(caseID uint) ([]models.QueueEntry, error)
	HasDeclined(caseID, providerID uint) (bool, error)
	// AvailableCases returns still-pending queued cases the provider has
	// not declined, FIFO by earliest queue position. The view is computed
	// against live case status, never a cached snapshot.
	AvailableCases(providerID uint, limit int) ([]models.Case, error)
}

// PaymentMethodTotal aggregates income by payment method.
type PaymentMethodTotal struct {
	PaymentMethod string  `json:"payment_method"`
	Total         float64 `json:"total"`
	Count         int64   `json:"count"`
}

// MonthlyIncome aggregates income per calendar month.
type MonthlyIncome struct {
	Month string  `json:"month"` // YYYY-MM
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// IncomeRepository records and aggregates self-reported income.
type IncomeRepository interface {
	// CreateIfAbsent inserts the record unless one already exists for the
	// case, making completion retries idempotent.
	CreateIfAbsent(rec *models.IncomeRecord) (bool, error)
	GetByCaseID(caseID uint) (*models.IncomeRecord, error)
	ListByProviderBetween(providerID uint, from, to time.Time) ([]models.IncomeRecord, error)
	MonthlyTotals(providerID uint, year int) ([]MonthlyIncome, error)
	TotalsByPaymentMethod(providerID uint, from, to time.Time) ([]PaymentMethodTotal, error)
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// NotificationRepository lists and updates a user's notifications.
type NotificationRepository interface {
	ListByUser(userID uint, offset, limit int) ([]models.Notification, error)
	CountUnread(userID uint) (int64, error)
	MarkRead(id, userID uint) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Case         CaseRepository
	Bid          BidRepository
	Queue        QueueRepository
	Income       IncomeRepository
	User         UserRepository
	Notification NotificationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Case:         NewCaseRepository(db),
		Bid:          NewBidRepository(db),
		Queue:        NewQueueRepository(db),
		Income:       NewIncomeRepository(db),
		User:         NewUserRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

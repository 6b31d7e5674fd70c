package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	// GetByNumber retrieves an account by its number
	GetByNumber(ctx context.Context, number string) (*Account, error)

	// GetForUpdate retrieves an account and locks it until the unit of work ends
	GetForUpdate(ctx context.Context, number string) (*Account, error)

	// GetSystemAccount retrieves the bank intermediary account for a currency
	GetSystemAccount(ctx context.Context, currency string) (*Account, error)

	// GetPrimaryByOwner retrieves the oldest account held by a client
	GetPrimaryByOwner(ctx context.Context, ownerID int64) (*Account, error)

	// UpdateBalance overwrites the balance of a locked account
	UpdateBalance(ctx context.Context, number string, balance decimal.Decimal) error

	// Create creates a new account
	Create(ctx context.Context, account *Account) error
}

// PaymentRepository defines the interface for payment persistence operations
type PaymentRepository interface {
	// Create creates a new payment
	Create(ctx context.Context, payment *Payment) error

	// GetByID retrieves a payment by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetForUpdate retrieves a payment and locks it until the unit of work ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)

	// Transition moves the payment from the expected status to payment.Status,
	// persisting out-amount, completion time and failure reason.
	// Returns false when the stored status no longer matches from.
	Transition(ctx context.Context, payment *Payment, from PaymentStatus) (bool, error)
}

// TrackedPaymentRepository defines the interface for tracked payment persistence operations
type TrackedPaymentRepository interface {
	Create(ctx context.Context, tp *TrackedPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*TrackedPayment, error)
}

// OtcOptionRepository defines the interface for OTC option persistence operations
type OtcOptionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*OtcOption, error)

	// GetForUpdate retrieves an option and locks it until the unit of work ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*OtcOption, error)

	Create(ctx context.Context, option *OtcOption) error
	Update(ctx context.Context, option *OtcOption) error

	// ListByBuyer retrieves every option held by a buyer, newest settlement first
	ListByBuyer(ctx context.Context, buyerID int64) ([]*OtcOption, error)
}

// OtcOfferRepository defines the interface for OTC offer persistence operations
type OtcOfferRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*OtcOffer, error)
	Create(ctx context.Context, offer *OtcOffer) error
	Update(ctx context.Context, offer *OtcOffer) error

	// ListByParticipant retrieves offers in a status where the user is buyer or seller,
	// most recently modified first
	ListByParticipant(ctx context.Context, userID int64, status OtcOfferStatus) ([]*OtcOffer, error)
}

// PortfolioRepository defines the interface for portfolio persistence operations
type PortfolioRepository interface {
	// Get retrieves the holding of one stock by one user
	Get(ctx context.Context, userID int64, stockID uuid.UUID) (*PortfolioEntry, error)

	// Save creates or updates an entry
	Save(ctx context.Context, entry *PortfolioEntry) error
}

// OutboxRepository defines the interface for outcome outbox persistence operations
type OutboxRepository interface {
	// Add stores a pending event
	Add(ctx context.Context, event *OutboxEvent) error

	// ClaimDue leases up to limit pending events whose next run time has passed.
	// A claimed event is invisible to other claimers until lease elapses.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*OutboxEvent, error)

	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, nextRunAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error

	// ListByPayment retrieves the events written for a payment, oldest first
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*OutboxEvent, error)
}

// JournalRepository defines the interface for journal entry persistence operations
type JournalRepository interface {
	// Create appends entries
	Create(ctx context.Context, entries []JournalEntry) error

	// ListByPayment retrieves the entries written for a payment in leg order
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]JournalEntry, error)
}

// Repositories is the set of repositories bound to one unit of work
type Repositories struct {
	Accounts        AccountRepository
	Payments        PaymentRepository
	TrackedPayments TrackedPaymentRepository
	Options         OtcOptionRepository
	Offers          OtcOfferRepository
	Portfolio       PortfolioRepository
	Outbox          OutboxRepository
	Journal         JournalRepository
}

// UnitOfWork runs fn atomically. Every write made through repos commits together
// when fn returns nil and is discarded otherwise. Calls must not be nested.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

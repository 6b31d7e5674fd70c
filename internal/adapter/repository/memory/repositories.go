package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	s *state
}

func (r *accountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	account, ok := r.s.accounts[number]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &account, nil
}

// GetForUpdate needs no row lock: the store mutex already serializes units of work
func (r *accountRepository) GetForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	return r.GetByNumber(ctx, number)
}

func (r *accountRepository) GetSystemAccount(ctx context.Context, currency string) (*domain.Account, error) {
	for _, number := range r.s.accountOrder {
		account := r.s.accounts[number]
		if account.IsBankAccount() && account.Currency == currency {
			return &account, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *accountRepository) GetPrimaryByOwner(ctx context.Context, ownerID int64) (*domain.Account, error) {
	for _, number := range r.s.accountOrder {
		account := r.s.accounts[number]
		if !account.IsBankAccount() && account.OwnerID == ownerID {
			return &account, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *accountRepository) UpdateBalance(ctx context.Context, number string, balance decimal.Decimal) error {
	account, ok := r.s.accounts[number]
	if !ok {
		return domain.ErrRecordNotFound
	}
	account.Balance = balance
	r.s.accounts[number] = account
	return nil
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	if _, exists := r.s.accounts[account.Number]; exists {
		return fmt.Errorf("account %s: %w", account.Number, domain.ErrDuplicateRecord)
	}
	r.s.accounts[account.Number] = *account
	r.s.accountOrder = append(r.s.accountOrder, account.Number)
	return nil
}

// paymentRepository implements domain.PaymentRepository
type paymentRepository struct {
	s *state
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if _, exists := r.s.payments[payment.ID]; exists {
		return fmt.Errorf("payment %s: %w", payment.ID, domain.ErrDuplicateRecord)
	}
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &payment, nil
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *paymentRepository) Transition(ctx context.Context, payment *domain.Payment, from domain.PaymentStatus) (bool, error) {
	stored, ok := r.s.payments[payment.ID]
	if !ok {
		return false, domain.ErrRecordNotFound
	}
	if stored.Status != from {
		return false, nil
	}
	stored.Status = payment.Status
	stored.OutAmount = payment.OutAmount
	stored.CompletedAt = payment.CompletedAt
	stored.FailureReason = payment.FailureReason
	r.s.payments[payment.ID] = stored
	return true, nil
}

// trackedPaymentRepository implements domain.TrackedPaymentRepository
type trackedPaymentRepository struct {
	s *state
}

func (r *trackedPaymentRepository) Create(ctx context.Context, tp *domain.TrackedPayment) error {
	r.s.tracked[tp.ID] = *tp
	return nil
}

func (r *trackedPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrackedPayment, error) {
	tp, ok := r.s.tracked[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &tp, nil
}

// optionRepository implements domain.OtcOptionRepository
type optionRepository struct {
	s *state
}

func (r *optionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OtcOption, error) {
	option, ok := r.s.options[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &option, nil
}

func (r *optionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.OtcOption, error) {
	return r.GetByID(ctx, id)
}

func (r *optionRepository) Create(ctx context.Context, option *domain.OtcOption) error {
	r.s.options[option.ID] = *option
	return nil
}

func (r *optionRepository) Update(ctx context.Context, option *domain.OtcOption) error {
	if _, ok := r.s.options[option.ID]; !ok {
		return domain.ErrRecordNotFound
	}
	r.s.options[option.ID] = *option
	return nil
}

func (r *optionRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*domain.OtcOption, error) {
	options := make([]*domain.OtcOption, 0)
	for _, option := range r.s.options {
		if option.BuyerID == buyerID {
			o := option
			options = append(options, &o)
		}
	}
	sort.Slice(options, func(i, j int) bool {
		return options[i].SettlementDate.After(options[j].SettlementDate)
	})
	return options, nil
}

// offerRepository implements domain.OtcOfferRepository
type offerRepository struct {
	s *state
}

func (r *offerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OtcOffer, error) {
	offer, ok := r.s.offers[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &offer, nil
}

func (r *offerRepository) Create(ctx context.Context, offer *domain.OtcOffer) error {
	r.s.offers[offer.ID] = *offer
	return nil
}

func (r *offerRepository) Update(ctx context.Context, offer *domain.OtcOffer) error {
	if _, ok := r.s.offers[offer.ID]; !ok {
		return domain.ErrRecordNotFound
	}
	r.s.offers[offer.ID] = *offer
	return nil
}

func (r *offerRepository) ListByParticipant(ctx context.Context, userID int64, status domain.OtcOfferStatus) ([]*domain.OtcOffer, error) {
	offers := make([]*domain.OtcOffer, 0)
	for _, offer := range r.s.offers {
		if offer.Status == status && offer.IsParticipant(userID) {
			o := offer
			offers = append(offers, &o)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].LastModified.After(offers[j].LastModified)
	})
	return offers, nil
}

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	s *state
}

func (r *portfolioRepository) Get(ctx context.Context, userID int64, stockID uuid.UUID) (*domain.PortfolioEntry, error) {
	for _, entry := range r.s.portfolio {
		if entry.UserID == userID && entry.StockID == stockID {
			e := entry
			return &e, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *portfolioRepository) Save(ctx context.Context, entry *domain.PortfolioEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.s.portfolio[entry.ID] = *entry
	return nil
}

// outboxRepository implements domain.OutboxRepository
type outboxRepository struct {
	s *state
}

func (r *outboxRepository) Add(ctx context.Context, event *domain.OutboxEvent) error {
	r.s.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*domain.OutboxEvent, error) {
	due := make([]domain.OutboxEvent, 0)
	for _, event := range r.s.outbox {
		if event.Status == domain.OutboxStatusPending && !event.NextRunAt.After(now) {
			due = append(due, event)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.OutboxEvent, 0, len(due))
	for _, event := range due {
		event.NextRunAt = now.Add(lease)
		r.s.outbox[event.ID] = event
		e := event
		claimed = append(claimed, &e)
	}
	return claimed, nil
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.Status = domain.OutboxStatusDelivered
		e.LastError = ""
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, nextRunAt time.Time, lastErr string) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.Attempts = attempts
		e.NextRunAt = nextRunAt
		e.LastError = lastErr
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.Status = domain.OutboxStatusFailed
		e.Attempts = attempts
		e.LastError = lastErr
	})
}

func (r *outboxRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.OutboxEvent, error) {
	events := make([]*domain.OutboxEvent, 0)
	for _, event := range r.s.outbox {
		if event.PaymentID == paymentID {
			e := event
			events = append(events, &e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (r *outboxRepository) update(id uuid.UUID, fn func(e *domain.OutboxEvent)) error {
	event, ok := r.s.outbox[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	fn(&event)
	r.s.outbox[id] = event
	return nil
}

// journalRepository implements domain.JournalRepository
type journalRepository struct {
	s *state
}

func (r *journalRepository) Create(ctx context.Context, entries []domain.JournalEntry) error {
	r.s.journal = append(r.s.journal, entries...)
	return nil
}

func (r *journalRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.JournalEntry, error) {
	entries := make([]domain.JournalEntry, 0)
	for _, entry := range r.s.journal {
		if entry.PaymentID == paymentID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

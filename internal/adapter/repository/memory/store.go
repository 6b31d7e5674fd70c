package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// Store is an in-process implementation of domain.UnitOfWork.
// A single mutex serializes units of work. Each one mutates a copy of the state
// that replaces the committed state only when the work succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx implements domain.UnitOfWork. It is not re-entrant.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, work.repositories()); err != nil {
		return err
	}

	s.state = work
	return nil
}

type state struct {
	accounts     map[string]domain.Account
	accountOrder []string
	payments     map[uuid.UUID]domain.Payment
	tracked      map[uuid.UUID]domain.TrackedPayment
	options      map[uuid.UUID]domain.OtcOption
	offers       map[uuid.UUID]domain.OtcOffer
	portfolio    map[uuid.UUID]domain.PortfolioEntry
	outbox       map[uuid.UUID]domain.OutboxEvent
	journal      []domain.JournalEntry
}

func newState() *state {
	return &state{
		accounts:  make(map[string]domain.Account),
		payments:  make(map[uuid.UUID]domain.Payment),
		tracked:   make(map[uuid.UUID]domain.TrackedPayment),
		options:   make(map[uuid.UUID]domain.OtcOption),
		offers:    make(map[uuid.UUID]domain.OtcOffer),
		portfolio: make(map[uuid.UUID]domain.PortfolioEntry),
		outbox:    make(map[uuid.UUID]domain.OutboxEvent),
	}
}

// clone copies every table. Values are stored by value so the copies are independent.
func (s *state) clone() *state {
	return &state{
		accounts:     maps.Clone(s.accounts),
		accountOrder: slices.Clone(s.accountOrder),
		payments:     maps.Clone(s.payments),
		tracked:      maps.Clone(s.tracked),
		options:      maps.Clone(s.options),
		offers:       maps.Clone(s.offers),
		portfolio:    maps.Clone(s.portfolio),
		outbox:       maps.Clone(s.outbox),
		journal:      slices.Clone(s.journal),
	}
}

func (s *state) repositories() domain.Repositories {
	return domain.Repositories{
		Accounts:        &accountRepository{s: s},
		Payments:        &paymentRepository{s: s},
		TrackedPayments: &trackedPaymentRepository{s: s},
		Options:         &optionRepository{s: s},
		Offers:          &offerRepository{s: s},
		Portfolio:       &portfolioRepository{s: s},
		Outbox:          &outboxRepository{s: s},
		Journal:         &journalRepository{s: s},
	}
}

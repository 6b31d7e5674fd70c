package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places balances are stored with
const AmountScale int32 = 4

// RoundAmount rounds a monetary amount to the stored scale
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// Leg moves value from one account to another.
// Same-currency legs carry equal debit and credit amounts. A cross-currency leg
// credits DebitAmount x Rate (rounded) in the target currency.
type Leg struct {
	From         string
	To           string // Empty when funds leave the bank (external payee)
	FromCurrency string
	ToCurrency   string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
	Rate         decimal.Decimal
}

// IsExternal reports whether the leg has no local credit account
func (l Leg) IsExternal() bool {
	return l.To == ""
}

// Plan is the ordered list of legs a settlement applies atomically
type Plan struct {
	Legs []Leg
}

// Validate ensures every leg conserves value
// CRITICAL: same-currency legs must debit exactly what they credit
func (p Plan) Validate() error {
	if len(p.Legs) == 0 {
		return errors.New("settlement plan must have at least one leg")
	}

	for _, leg := range p.Legs {
		if leg.From == "" {
			return errors.New("settlement leg must have a debit account")
		}
		if !leg.DebitAmount.IsPositive() {
			return errors.New("settlement leg debit amount must be positive")
		}
		if leg.IsExternal() {
			continue
		}
		if !leg.CreditAmount.IsPositive() {
			return errors.New("settlement leg credit amount must be positive")
		}

		if leg.FromCurrency == leg.ToCurrency {
			if !leg.DebitAmount.Equal(leg.CreditAmount) {
				return errors.New("same-currency leg must debit and credit the same amount")
			}
			continue
		}

		if !RoundAmount(leg.DebitAmount.Mul(leg.Rate)).Equal(leg.CreditAmount) {
			return errors.New("cross-currency leg credit must equal debit converted at the leg rate")
		}
	}

	return nil
}

// Deltas nets the plan into one balance change per touched account
func (p Plan) Deltas() map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal)
	for _, leg := range p.Legs {
		deltas[leg.From] = deltas[leg.From].Sub(leg.DebitAmount)
		if !leg.IsExternal() {
			deltas[leg.To] = deltas[leg.To].Add(leg.CreditAmount)
		}
	}
	return deltas
}

// Accounts returns the touched account numbers in lock order
func (p Plan) Accounts() []string {
	deltas := p.Deltas()
	numbers := make([]string, 0, len(deltas))
	for number := range deltas {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)
	return numbers
}

// EntryDirection is the side of a journal entry.
// DEBIT lowers the account balance, CREDIT raises it.
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "DEBIT"
	EntryDirectionCredit EntryDirection = "CREDIT"
)

// JournalEntry records one side of one leg applied for a payment
type JournalEntry struct {
	ID            uuid.UUID
	PaymentID     uuid.UUID
	Leg           int
	AccountNumber string
	Direction     EntryDirection
	Amount        decimal.Decimal // ABSOLUTE VALUE (Always Positive)
	Currency      string
	CreatedAt     time.Time
}

// JournalEntries expands the plan into the entries persisted alongside the balance changes
func (p Plan) JournalEntries(paymentID uuid.UUID, at time.Time) []JournalEntry {
	entries := make([]JournalEntry, 0, len(p.Legs)*2)
	for i, leg := range p.Legs {
		entries = append(entries, JournalEntry{
			ID:            uuid.New(),
			PaymentID:     paymentID,
			Leg:           i,
			AccountNumber: leg.From,
			Direction:     EntryDirectionDebit,
			Amount:        leg.DebitAmount,
			Currency:      leg.FromCurrency,
			CreatedAt:     at,
		})
		if leg.IsExternal() {
			continue
		}
		entries = append(entries, JournalEntry{
			ID:            uuid.New(),
			PaymentID:     paymentID,
			Leg:           i,
			AccountNumber: leg.To,
			Direction:     EntryDirectionCredit,
			Amount:        leg.CreditAmount,
			Currency:      leg.ToCurrency,
			CreatedAt:     at,
		})
	}
	return entries
}

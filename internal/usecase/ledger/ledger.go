package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// TransferPlan builds the postings for a peer transfer.
// Same currency: a single sender -> receiver leg.
// Cross currency: sender -> bank(A), bank(A) -> bank(B) at rate, bank(B) -> receiver.
func TransferPlan(sender, receiver, senderBank, receiverBank *domain.Account, amount, rate decimal.Decimal) domain.Plan {
	if sender.Currency == receiver.Currency {
		return domain.Plan{Legs: []domain.Leg{
			{
				From:         sender.Number,
				To:           receiver.Number,
				FromCurrency: sender.Currency,
				ToCurrency:   receiver.Currency,
				DebitAmount:  amount,
				CreditAmount: amount,
			},
		}}
	}

	converted := domain.RoundAmount(amount.Mul(rate))
	return domain.Plan{Legs: []domain.Leg{
		{
			From:         sender.Number,
			To:           senderBank.Number,
			FromCurrency: sender.Currency,
			ToCurrency:   senderBank.Currency,
			DebitAmount:  amount,
			CreditAmount: amount,
		},
		{
			From:         senderBank.Number,
			To:           receiverBank.Number,
			FromCurrency: senderBank.Currency,
			ToCurrency:   receiverBank.Currency,
			DebitAmount:  amount,
			CreditAmount: converted,
			Rate:         rate,
		},
		{
			From:         receiverBank.Number,
			To:           receiver.Number,
			FromCurrency: receiverBank.Currency,
			ToCurrency:   receiver.Currency,
			DebitAmount:  converted,
			CreditAmount: converted,
		},
	}}
}

// BillPlan builds the single posting for a bill payment.
// A nil receiver means the payee is outside the bank and only the sender is debited.
func BillPlan(sender, receiver *domain.Account, amount, rate decimal.Decimal) domain.Plan {
	if receiver == nil {
		return domain.Plan{Legs: []domain.Leg{
			{
				From:         sender.Number,
				FromCurrency: sender.Currency,
				DebitAmount:  amount,
			},
		}}
	}

	leg := domain.Leg{
		From:         sender.Number,
		To:           receiver.Number,
		FromCurrency: sender.Currency,
		ToCurrency:   receiver.Currency,
		DebitAmount:  amount,
		CreditAmount: amount,
	}
	if sender.Currency != receiver.Currency {
		leg.CreditAmount = domain.RoundAmount(amount.Mul(rate))
		leg.Rate = rate
	}
	return domain.Plan{Legs: []domain.Leg{leg}}
}

// CreditedAmount is the amount the plan's last leg lands in its target account
func CreditedAmount(plan domain.Plan) decimal.Decimal {
	last := plan.Legs[len(plan.Legs)-1]
	if last.IsExternal() {
		return last.DebitAmount
	}
	return last.CreditAmount
}

// Apply executes a plan inside the caller's unit of work.
// Accounts are locked in account-number order so concurrent plans cannot deadlock.
// A debit that would take a non-bank account below zero fails with InsufficientFundsError,
// and the caller's rollback discards every leg.
func Apply(ctx context.Context, repos domain.Repositories, paymentID uuid.UUID, plan domain.Plan, at time.Time) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	deltas := plan.Deltas()
	for _, number := range plan.Accounts() {
		account, err := repos.Accounts.GetForUpdate(ctx, number)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return fmt.Errorf("ledger account %s: %w", number, domain.ErrAccountNotFound)
			}
			return fmt.Errorf("failed to lock account %s: %w", number, err)
		}

		delta := deltas[number]
		if delta.IsZero() {
			continue
		}

		balance := account.Balance.Add(delta)
		if balance.IsNegative() && !account.IsBankAccount() {
			return &domain.InsufficientFundsError{Available: account.Balance, Requested: delta.Neg()}
		}

		if err := repos.Accounts.UpdateBalance(ctx, number, balance); err != nil {
			return fmt.Errorf("failed to update balance of %s: %w", number, err)
		}
	}

	if err := repos.Journal.Create(ctx, plan.JournalEntries(paymentID, at)); err != nil {
		return fmt.Errorf("failed to write journal entries: %w", err)
	}

	return nil
}

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/adapter/repository/memory"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender       = &domain.Account{Number: "A", OwnerID: 1, OwnerType: domain.OwnerTypeClient, Currency: "RSD", Balance: decimal.NewFromInt(10000)}
	receiverRSD  = &domain.Account{Number: "B", OwnerID: 2, OwnerType: domain.OwnerTypeClient, Currency: "RSD", Balance: decimal.NewFromInt(2000)}
	receiverEUR  = &domain.Account{Number: "C", OwnerID: 2, OwnerType: domain.OwnerTypeClient, Currency: "EUR", Balance: decimal.NewFromInt(100)}
	bankRSD      = &domain.Account{Number: "BANK-RSD", OwnerType: domain.OwnerTypeBank, Currency: "RSD", Balance: decimal.NewFromInt(1000000)}
	bankEUR      = &domain.Account{Number: "BANK-EUR", OwnerType: domain.OwnerTypeBank, Currency: "EUR", Balance: decimal.NewFromInt(1000000)}
	rateRSDToEUR = decimal.RequireFromString("0.0085")
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		for _, a := range []*domain.Account{sender, receiverRSD, receiverEUR, bankRSD, bankEUR} {
			account := *a
			if err := repos.Accounts.Create(ctx, &account); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return store
}

func balances(t *testing.T, store *memory.Store, numbers ...string) map[string]decimal.Decimal {
	t.Helper()
	out := make(map[string]decimal.Decimal)
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		for _, n := range numbers {
			account, err := repos.Accounts.GetByNumber(ctx, n)
			if err != nil {
				return err
			}
			out[n] = account.Balance
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestTransferPlan_SameCurrency(t *testing.T) {
	plan := TransferPlan(sender, receiverRSD, bankRSD, bankRSD, decimal.NewFromInt(5000), decimal.NewFromInt(1))

	require.Len(t, plan.Legs, 1)
	assert.Equal(t, "A", plan.Legs[0].From)
	assert.Equal(t, "B", plan.Legs[0].To)
	assert.NoError(t, plan.Validate())
	assert.True(t, CreditedAmount(plan).Equal(decimal.NewFromInt(5000)))
}

func TestTransferPlan_CrossCurrency(t *testing.T) {
	plan := TransferPlan(sender, receiverEUR, bankRSD, bankEUR, decimal.NewFromInt(1000), rateRSDToEUR)

	require.Len(t, plan.Legs, 3)
	assert.NoError(t, plan.Validate())
	assert.Equal(t, []string{"A", "BANK-RSD"}, []string{plan.Legs[0].From, plan.Legs[0].To})
	assert.Equal(t, []string{"BANK-RSD", "BANK-EUR"}, []string{plan.Legs[1].From, plan.Legs[1].To})
	assert.Equal(t, []string{"BANK-EUR", "C"}, []string{plan.Legs[2].From, plan.Legs[2].To})
	assert.True(t, CreditedAmount(plan).Equal(decimal.RequireFromString("8.5")))
}

func TestBillPlan_ExternalReceiver(t *testing.T) {
	plan := BillPlan(sender, nil, decimal.NewFromInt(300), decimal.NewFromInt(1))

	require.Len(t, plan.Legs, 1)
	assert.True(t, plan.Legs[0].IsExternal())
	assert.NoError(t, plan.Validate())
	assert.True(t, CreditedAmount(plan).Equal(decimal.NewFromInt(300)))
}

func TestBillPlan_ConvertsIntoReceiverCurrency(t *testing.T) {
	plan := BillPlan(sender, receiverEUR, decimal.NewFromInt(1000), rateRSDToEUR)

	require.Len(t, plan.Legs, 1)
	assert.NoError(t, plan.Validate())
	assert.True(t, plan.Legs[0].CreditAmount.Equal(decimal.RequireFromString("8.5")))
}

func TestApply_SameCurrencyConservesValue(t *testing.T) {
	store := newStore(t)
	paymentID := uuid.New()
	plan := TransferPlan(sender, receiverRSD, bankRSD, bankRSD, decimal.NewFromInt(5000), decimal.NewFromInt(1))

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		return Apply(ctx, repos, paymentID, plan, time.Now())
	})
	require.NoError(t, err)

	got := balances(t, store, "A", "B")
	assert.True(t, got["A"].Equal(decimal.NewFromInt(5000)))
	assert.True(t, got["B"].Equal(decimal.NewFromInt(7000)))
	assert.True(t, got["A"].Add(got["B"]).Equal(decimal.NewFromInt(12000)))
}

func TestApply_CrossCurrencyBanksNetZero(t *testing.T) {
	store := newStore(t)
	paymentID := uuid.New()
	plan := TransferPlan(sender, receiverEUR, bankRSD, bankEUR, decimal.NewFromInt(1000), rateRSDToEUR)

	var entries []domain.JournalEntry
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		if err := Apply(ctx, repos, paymentID, plan, time.Now()); err != nil {
			return err
		}
		var err error
		entries, err = repos.Journal.ListByPayment(ctx, paymentID)
		return err
	})
	require.NoError(t, err)

	got := balances(t, store, "A", "C", "BANK-RSD", "BANK-EUR")
	assert.True(t, got["A"].Equal(decimal.NewFromInt(9000)))
	assert.True(t, got["C"].Equal(decimal.RequireFromString("108.5")))
	assert.True(t, got["BANK-RSD"].Equal(decimal.NewFromInt(1000000)))
	assert.True(t, got["BANK-EUR"].Equal(decimal.NewFromInt(1000000)))
	assert.Len(t, entries, 6)
}

func TestApply_InsufficientFundsRollsBackEveryLeg(t *testing.T) {
	store := newStore(t)
	plan := TransferPlan(sender, receiverEUR, bankRSD, bankEUR, decimal.NewFromInt(20000), rateRSDToEUR)

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		return Apply(ctx, repos, uuid.New(), plan, time.Now())
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(decimal.NewFromInt(10000)))
	assert.True(t, insufficient.Requested.Equal(decimal.NewFromInt(20000)))

	got := balances(t, store, "A", "C", "BANK-RSD", "BANK-EUR")
	assert.True(t, got["A"].Equal(decimal.NewFromInt(10000)))
	assert.True(t, got["C"].Equal(decimal.NewFromInt(100)))
}

func TestApply_MissingAccount(t *testing.T) {
	store := newStore(t)
	ghost := &domain.Account{Number: "GHOST", Currency: "RSD"}
	plan := TransferPlan(sender, ghost, bankRSD, bankRSD, decimal.NewFromInt(10), decimal.NewFromInt(1))

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		return Apply(ctx, repos, uuid.New(), plan, time.Now())
	})

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.True(t, balances(t, store, "A")["A"].Equal(decimal.NewFromInt(10000)))
}

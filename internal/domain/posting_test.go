package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
		errMsg  string
	}{
		{
			name: "Same-currency leg with equal amounts should pass",
			plan: Plan{Legs: []Leg{
				{From: "A", To: "B", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.NewFromInt(5000), CreditAmount: decimal.NewFromInt(5000)},
			}},
			wantErr: false,
		},
		{
			name: "Three-hop cross-currency plan should pass",
			plan: Plan{Legs: []Leg{
				{From: "A", To: "BANK-RSD", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.NewFromInt(1000), CreditAmount: decimal.NewFromInt(1000)},
				{From: "BANK-RSD", To: "BANK-EUR", FromCurrency: "RSD", ToCurrency: "EUR", DebitAmount: decimal.NewFromInt(1000), CreditAmount: decimal.RequireFromString("8.5"), Rate: decimal.RequireFromString("0.0085")},
				{From: "BANK-EUR", To: "B", FromCurrency: "EUR", ToCurrency: "EUR", DebitAmount: decimal.RequireFromString("8.5"), CreditAmount: decimal.RequireFromString("8.5")},
			}},
			wantErr: false,
		},
		{
			name: "External leg without credit should pass",
			plan: Plan{Legs: []Leg{
				{From: "A", FromCurrency: "RSD", DebitAmount: decimal.NewFromInt(100)},
			}},
			wantErr: false,
		},
		{
			name:    "Empty plan should fail",
			plan:    Plan{},
			wantErr: true,
			errMsg:  "settlement plan must have at least one leg",
		},
		{
			name: "Same-currency leg with unequal amounts should fail",
			plan: Plan{Legs: []Leg{
				{From: "A", To: "B", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.NewFromInt(100), CreditAmount: decimal.NewFromInt(50)},
			}},
			wantErr: true,
			errMsg:  "same-currency leg must debit and credit the same amount",
		},
		{
			name: "FX leg with wrong credit should fail",
			plan: Plan{Legs: []Leg{
				{From: "BANK-RSD", To: "BANK-EUR", FromCurrency: "RSD", ToCurrency: "EUR", DebitAmount: decimal.NewFromInt(1000), CreditAmount: decimal.NewFromInt(9), Rate: decimal.RequireFromString("0.0085")},
			}},
			wantErr: true,
			errMsg:  "cross-currency leg credit must equal debit converted at the leg rate",
		},
		{
			name: "Zero debit should fail",
			plan: Plan{Legs: []Leg{
				{From: "A", To: "B", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.Zero, CreditAmount: decimal.Zero},
			}},
			wantErr: true,
			errMsg:  "settlement leg debit amount must be positive",
		},
		{
			name: "Missing debit account should fail",
			plan: Plan{Legs: []Leg{
				{To: "B", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.NewFromInt(1), CreditAmount: decimal.NewFromInt(1)},
			}},
			wantErr: true,
			errMsg:  "settlement leg must have a debit account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlan_Deltas_BankAccountsNetZero(t *testing.T) {
	plan := Plan{Legs: []Leg{
		{From: "A", To: "BANK-RSD", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.NewFromInt(1000), CreditAmount: decimal.NewFromInt(1000)},
		{From: "BANK-RSD", To: "BANK-EUR", FromCurrency: "RSD", ToCurrency: "EUR", DebitAmount: decimal.NewFromInt(1000), CreditAmount: decimal.RequireFromString("8.5"), Rate: decimal.RequireFromString("0.0085")},
		{From: "BANK-EUR", To: "B", FromCurrency: "EUR", ToCurrency: "EUR", DebitAmount: decimal.RequireFromString("8.5"), CreditAmount: decimal.RequireFromString("8.5")},
	}}

	deltas := plan.Deltas()

	assert.True(t, deltas["A"].Equal(decimal.NewFromInt(-1000)))
	assert.True(t, deltas["B"].Equal(decimal.RequireFromString("8.5")))
	assert.True(t, deltas["BANK-RSD"].IsZero())
	assert.True(t, deltas["BANK-EUR"].IsZero())
	assert.Equal(t, []string{"A", "B", "BANK-EUR", "BANK-RSD"}, plan.Accounts())
}

func TestPlan_JournalEntries(t *testing.T) {
	paymentID := uuid.New()
	at := time.Now()
	plan := Plan{Legs: []Leg{
		{From: "A", To: "B", FromCurrency: "RSD", ToCurrency: "RSD", DebitAmount: decimal.NewFromInt(10), CreditAmount: decimal.NewFromInt(10)},
		{From: "C", FromCurrency: "RSD", DebitAmount: decimal.NewFromInt(5)},
	}}

	entries := plan.JournalEntries(paymentID, at)

	assert.Len(t, entries, 3)
	assert.Equal(t, EntryDirectionDebit, entries[0].Direction)
	assert.Equal(t, "A", entries[0].AccountNumber)
	assert.Equal(t, EntryDirectionCredit, entries[1].Direction)
	assert.Equal(t, "B", entries[1].AccountNumber)
	assert.Equal(t, 1, entries[2].Leg)
	assert.Equal(t, "C", entries[2].AccountNumber)
	for _, e := range entries {
		assert.Equal(t, paymentID, e.PaymentID)
		assert.True(t, e.Amount.IsPositive())
	}
}

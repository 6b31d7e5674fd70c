package conversion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{name: "Reference currency is 1:1", amount: "1000", currency: "RSD", want: "1000"},
		{name: "EUR", amount: "1000", currency: "EUR", want: "8.5"},
		{name: "USD", amount: "1000", currency: "USD", want: "10"},
		{name: "HRK", amount: "1000", currency: "HRK", want: "64"},
		{name: "JPY", amount: "1000", currency: "JPY", want: "1140"},
		{name: "GBP", amount: "1000", currency: "GBP", want: "7.6"},
		{name: "AUD", amount: "1000", currency: "AUD", want: "14"},
		{name: "CHF", amount: "1000", currency: "CHF", want: "9.5"},
		{name: "Lowercase code", amount: "200", currency: "eur", want: "1.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestConvert_UnknownCurrency(t *testing.T) {
	_, err := Convert(decimal.NewFromInt(1000), "XYZ")

	assert.ErrorIs(t, err, domain.ErrCurrencyNotFound)
	var notFound *domain.CurrencyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "XYZ", notFound.Code)
}

func TestNewTable_CustomRates(t *testing.T) {
	table := NewTable(map[string]decimal.Decimal{"rsd": decimal.NewFromInt(1), "EUR": decimal.RequireFromString("0.01")})

	got, err := table.Convert(decimal.NewFromInt(500), "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(5)))

	_, err = table.Convert(decimal.NewFromInt(500), "USD")
	assert.ErrorIs(t, err, domain.ErrCurrencyNotFound)
}

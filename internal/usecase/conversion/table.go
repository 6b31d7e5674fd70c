package conversion

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// ReferenceCurrency is the currency bill payments are denominated in
const ReferenceCurrency = "RSD"

// Table converts reference-currency amounts with fixed multiplicative rates.
// It is distinct from the live exchange rate gateway used by transfers.
type Table struct {
	rates map[string]decimal.Decimal
}

// DefaultTable returns the static rates used for bill payments
func DefaultTable() *Table {
	return NewTable(map[string]decimal.Decimal{
		ReferenceCurrency: decimal.NewFromInt(1),
		"EUR":             decimal.RequireFromString("0.0085"),
		"USD":             decimal.RequireFromString("0.010"),
		"HRK":             decimal.RequireFromString("0.064"),
		"JPY":             decimal.RequireFromString("1.14"),
		"GBP":             decimal.RequireFromString("0.0076"),
		"AUD":             decimal.RequireFromString("0.014"),
		"CHF":             decimal.RequireFromString("0.0095"),
	})
}

// NewTable creates a table from explicit rates keyed by currency code
func NewTable(rates map[string]decimal.Decimal) *Table {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	return &Table{rates: normalized}
}

// Rate returns the multiplier for a currency
func (t *Table) Rate(currency string) (decimal.Decimal, error) {
	rate, ok := t.rates[strings.ToUpper(currency)]
	if !ok {
		return decimal.Zero, &domain.CurrencyNotFoundError{Code: currency}
	}
	return rate, nil
}

// Convert maps an amount in the reference currency into the target currency
func (t *Table) Convert(amountInReference decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, err := t.Rate(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amountInReference.Mul(rate), nil
}

// Convert uses the default table
func Convert(amountInReference decimal.Decimal, currency string) (decimal.Decimal, error) {
	return defaultTable.Convert(amountInReference, currency)
}

var defaultTable = DefaultTable()

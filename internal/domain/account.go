package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// OwnerType represents who holds an account
type OwnerType string

const (
	OwnerTypeClient  OwnerType = "CLIENT"
	OwnerTypeCompany OwnerType = "COMPANY"
	OwnerTypeBank    OwnerType = "BANK"
)

// Account represents a ledger account keyed by its account number.
// Bank accounts (OwnerTypeBank) are the per-currency intermediaries used for cross-currency settlement.
type Account struct {
	Number    string
	OwnerID   int64
	OwnerType OwnerType
	Currency  string
	Balance   decimal.Decimal
}

// IsBankAccount reports whether the account is one of the bank's own settlement accounts
func (a *Account) IsBankAccount() bool {
	return a.OwnerType == OwnerTypeBank
}

// IsOwnedByClient reports whether the account belongs to the given client
func (a *Account) IsOwnedByClient(clientID int64) bool {
	return a.OwnerType == OwnerTypeClient && a.OwnerID == clientID
}

// HasFunds reports whether the balance covers the requested amount
func (a *Account) HasFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.Number == "" {
		return errors.New("account number cannot be empty")
	}
	if a.Currency == "" {
		return errors.New("account currency cannot be empty")
	}

	switch a.OwnerType {
	case OwnerTypeClient, OwnerTypeCompany, OwnerTypeBank:
	default:
		return errors.New("account owner type must be CLIENT, COMPANY, or BANK")
	}

	// Only client and company accounts are held to a non-negative balance
	if !a.IsBankAccount() && a.Balance.IsNegative() {
		return errors.New("account balance cannot be negative")
	}

	return nil
}

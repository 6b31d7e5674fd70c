package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// BankOwnerID is the owner of every bank intermediary account
const BankOwnerID int64 = 1

// Fixed account numbers for the bank intermediary accounts, one per supported currency
var (
	SYS_BANK_RSD = "111000100000000011"
	SYS_BANK_EUR = "111000100000000022"
	SYS_BANK_USD = "111000100000000033"
	SYS_BANK_HRK = "111000100000000044"
	SYS_BANK_JPY = "111000100000000055"
	SYS_BANK_GBP = "111000100000000066"
	SYS_BANK_AUD = "111000100000000077"
	SYS_BANK_CHF = "111000100000000088"
)

// SystemAccount defines the structure for a bank account to be seeded
type SystemAccount struct {
	Number   string
	Currency string
}

// SystemAccounts lists the bank intermediary accounts cross-currency settlement routes through
var SystemAccounts = []SystemAccount{
	{Number: SYS_BANK_RSD, Currency: "RSD"},
	{Number: SYS_BANK_EUR, Currency: "EUR"},
	{Number: SYS_BANK_USD, Currency: "USD"},
	{Number: SYS_BANK_HRK, Currency: "HRK"},
	{Number: SYS_BANK_JPY, Currency: "JPY"},
	{Number: SYS_BANK_GBP, Currency: "GBP"},
	{Number: SYS_BANK_AUD, Currency: "AUD"},
	{Number: SYS_BANK_CHF, Currency: "CHF"},
}

// SystemSeeder handles seeding of the bank intermediary accounts
type SystemSeeder struct {
	uow            domain.UnitOfWork
	openingBalance decimal.Decimal
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(uow domain.UnitOfWork, openingBalance decimal.Decimal) *SystemSeeder {
	return &SystemSeeder{
		uow:            uow,
		openingBalance: openingBalance,
	}
}

// Seed ensures every bank intermediary account exists.
// Existing accounts are left untouched, so running it again is safe.
func (s *SystemSeeder) Seed(ctx context.Context) (int, error) {
	created := 0
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		for _, sysAccount := range SystemAccounts {
			_, err := repos.Accounts.GetByNumber(ctx, sysAccount.Number)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up bank account %s: %w", sysAccount.Number, err)
			}

			account := &domain.Account{
				Number:    sysAccount.Number,
				OwnerID:   BankOwnerID,
				OwnerType: domain.OwnerTypeBank,
				Currency:  sysAccount.Currency,
				Balance:   s.openingBalance,
			}

			// Validate before creating
			if err := account.Validate(); err != nil {
				return err
			}

			if err := repos.Accounts.Create(ctx, account); err != nil {
				return fmt.Errorf("failed to create bank account %s: %w", sysAccount.Number, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

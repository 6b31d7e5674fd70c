package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	q querier
}

const accountColumns = `number, owner_id, owner_type, currency, balance`

// GetByNumber retrieves an account by its number
func (r *accountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, number))
	if err != nil {
		return nil, translate(err, "failed to get account %s", number)
	}
	return account, nil
}

// GetForUpdate retrieves an account and locks its row until the transaction ends
func (r *accountRepository) GetForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, number))
	if err != nil {
		return nil, translate(err, "failed to lock account %s", number)
	}
	return account, nil
}

// GetSystemAccount retrieves the bank intermediary account for a currency
func (r *accountRepository) GetSystemAccount(ctx context.Context, currency string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE owner_type = $1 AND currency = $2
		ORDER BY created_at, number
		LIMIT 1
	`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, string(domain.OwnerTypeBank), currency))
	if err != nil {
		return nil, translate(err, "failed to get bank account for currency %s", currency)
	}
	return account, nil
}

// GetPrimaryByOwner retrieves the first account opened by an owner
func (r *accountRepository) GetPrimaryByOwner(ctx context.Context, ownerID int64) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE owner_id = $1 AND owner_type <> $2
		ORDER BY created_at, number
		LIMIT 1
	`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, ownerID, string(domain.OwnerTypeBank)))
	if err != nil {
		return nil, translate(err, "failed to get primary account for owner %d", ownerID)
	}
	return account, nil
}

// UpdateBalance sets an account balance
func (r *accountRepository) UpdateBalance(ctx context.Context, number string, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1 WHERE number = $2`

	result, err := r.q.ExecContext(ctx, query, balance.String(), number)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return expectOneRow(result, "account %s", number)
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (number, owner_id, owner_type, currency, balance)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		account.Number,
		account.OwnerID,
		string(account.OwnerType),
		account.Currency,
		account.Balance.String(),
	)
	if err != nil {
		return translate(err, "failed to create account %s", account.Number)
	}
	return nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var ownerType string
	var balanceStr string

	err := row.Scan(
		&account.Number,
		&account.OwnerID,
		&ownerType,
		&account.Currency,
		&balanceStr,
	)
	if err != nil {
		return nil, err
	}
	account.OwnerType = domain.OwnerType(ownerType)

	// Parse balance (NUMERIC)
	account.Balance, err = parseDecimal(balanceStr, "balance")
	if err != nil {
		return nil, err
	}
	return &account, nil
}

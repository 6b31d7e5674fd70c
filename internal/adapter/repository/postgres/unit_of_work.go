package postgres

import (
	"context"
	"fmt"

	"github.com/simaogato/settlement-backend/internal/domain"
)

// UnitOfWork implements domain.UnitOfWork over a database transaction
type UnitOfWork struct {
	db *DB
}

// NewUnitOfWork creates a new unit of work bound to db
func NewUnitOfWork(db *DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithinTx runs fn in one database transaction, committing only when fn returns nil
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	// Start a database transaction
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, repositories(tx)); err != nil {
		return err
	}

	// Commit the transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func repositories(q querier) domain.Repositories {
	return domain.Repositories{
		Accounts:        &accountRepository{q: q},
		Payments:        &paymentRepository{q: q},
		TrackedPayments: &trackedPaymentRepository{q: q},
		Options:         &optionRepository{q: q},
		Offers:          &offerRepository{q: q},
		Portfolio:       &portfolioRepository{q: q},
		Outbox:          &outboxRepository{q: q},
		Journal:         &journalRepository{q: q},
	}
}

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// journalRepository implements domain.JournalRepository
type journalRepository struct {
	q querier
}

// Create inserts all entries of a settlement. The caller's transaction makes them atomic
// with the balance updates.
func (r *journalRepository) Create(ctx context.Context, entries []domain.JournalEntry) error {
	insertEntryQuery := `
		INSERT INTO journal_entries (id, payment_id, leg, account_number, direction, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, entry := range entries {
		_, err := r.q.ExecContext(ctx, insertEntryQuery,
			entry.ID,
			entry.PaymentID,
			entry.Leg,
			entry.AccountNumber,
			string(entry.Direction),
			entry.Amount.String(),
			entry.Currency,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
	}

	return nil
}

// ListByPayment retrieves the entries written for a payment in leg order
func (r *journalRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.JournalEntry, error) {
	query := `
		SELECT id, payment_id, leg, account_number, direction, amount, currency, created_at
		FROM journal_entries
		WHERE payment_id = $1
		ORDER BY leg ASC, direction DESC
	`

	rows, err := r.q.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.JournalEntry, 0)
	for rows.Next() {
		var entry domain.JournalEntry
		var direction, amountStr string

		err := rows.Scan(
			&entry.ID,
			&entry.PaymentID,
			&entry.Leg,
			&entry.AccountNumber,
			&direction,
			&amountStr,
			&entry.Currency,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entry.Direction = domain.EntryDirection(direction)

		entry.Amount, err = parseDecimal(amountStr, "amount")
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

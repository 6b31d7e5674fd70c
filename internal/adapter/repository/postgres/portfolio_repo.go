package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	q querier
}

// Get retrieves a user's holding of a stock, locking the row for the ownership transfer that follows
func (r *portfolioRepository) Get(ctx context.Context, userID int64, stockID uuid.UUID) (*domain.PortfolioEntry, error) {
	query := `
		SELECT id, user_id, stock_id, amount, public_amount, average_price
		FROM portfolio_entries
		WHERE user_id = $1 AND stock_id = $2
		FOR UPDATE
	`

	var entry domain.PortfolioEntry
	var averagePriceStr string
	err := r.q.QueryRowContext(ctx, query, userID, stockID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.StockID,
		&entry.Amount,
		&entry.PublicAmount,
		&averagePriceStr,
	)
	if err != nil {
		return nil, translate(err, "failed to get portfolio entry for user %d", userID)
	}

	entry.AveragePrice, err = parseDecimal(averagePriceStr, "average_price")
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Save creates or updates an entry
func (r *portfolioRepository) Save(ctx context.Context, entry *domain.PortfolioEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO portfolio_entries (id, user_id, stock_id, amount, public_amount, average_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET amount = EXCLUDED.amount,
			public_amount = EXCLUDED.public_amount,
			average_price = EXCLUDED.average_price
	`

	_, err := r.q.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.StockID,
		entry.Amount,
		entry.PublicAmount,
		entry.AveragePrice.String(),
	)
	if err != nil {
		return translate(err, "failed to save portfolio entry %s", entry.ID)
	}
	return nil
}

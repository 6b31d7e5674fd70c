package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// TransferInput describes shares changing hands at a price
type TransferInput struct {
	SellerID int64
	BuyerID  int64
	StockID  uuid.UUID
	Amount   int64
	Price    decimal.Decimal
}

// TransferStockOwnership moves shares from seller to buyer inside the caller's unit of work.
// The seller's public amount shrinks with the holding. The buyer's average price is
// re-weighted with the transfer price.
func TransferStockOwnership(ctx context.Context, repos domain.Repositories, input TransferInput) error {
	if input.Amount <= 0 {
		return fmt.Errorf("share transfer amount must be positive, got %d", input.Amount)
	}

	seller, err := repos.Portfolio.Get(ctx, input.SellerID, input.StockID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return fmt.Errorf("seller %d holds no %s: %w", input.SellerID, input.StockID, domain.ErrPortfolioEntryNotFound)
		}
		return fmt.Errorf("failed to load seller holding: %w", err)
	}
	if seller.Amount < input.Amount {
		return fmt.Errorf("seller %d holds %d, transfer needs %d: %w", input.SellerID, seller.Amount, input.Amount, domain.ErrInsufficientShares)
	}

	seller.Amount -= input.Amount
	seller.PublicAmount = max(0, min(seller.PublicAmount-input.Amount, seller.Amount))
	if err := repos.Portfolio.Save(ctx, seller); err != nil {
		return fmt.Errorf("failed to save seller holding: %w", err)
	}

	buyer, err := repos.Portfolio.Get(ctx, input.BuyerID, input.StockID)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		buyer = &domain.PortfolioEntry{
			ID:           uuid.New(),
			UserID:       input.BuyerID,
			StockID:      input.StockID,
			Amount:       input.Amount,
			AveragePrice: input.Price,
		}
	case err != nil:
		return fmt.Errorf("failed to load buyer holding: %w", err)
	default:
		held := decimal.NewFromInt(buyer.Amount)
		bought := decimal.NewFromInt(input.Amount)
		total := held.Add(bought)
		buyer.AveragePrice = domain.RoundAmount(
			buyer.AveragePrice.Mul(held).Add(input.Price.Mul(bought)).Div(total),
		)
		buyer.Amount += input.Amount
	}

	if err := repos.Portfolio.Save(ctx, buyer); err != nil {
		return fmt.Errorf("failed to save buyer holding: %w", err)
	}
	return nil
}

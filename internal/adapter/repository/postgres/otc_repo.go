package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// trackedPaymentRepository implements domain.TrackedPaymentRepository
type trackedPaymentRepository struct {
	q querier
}

// Create creates a new tracked payment
func (r *trackedPaymentRepository) Create(ctx context.Context, tp *domain.TrackedPayment) error {
	query := `
		INSERT INTO tracked_payments (id, tracked_entity_id, type, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.ExecContext(ctx, query, tp.ID, tp.TrackedEntityID, string(tp.Type), tp.CreatedAt)
	if err != nil {
		return translate(err, "failed to create tracked payment %s", tp.ID)
	}
	return nil
}

// GetByID retrieves a tracked payment by its ID
func (r *trackedPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrackedPayment, error) {
	query := `SELECT id, tracked_entity_id, type, created_at FROM tracked_payments WHERE id = $1`

	var tp domain.TrackedPayment
	var trackedType string
	err := r.q.QueryRowContext(ctx, query, id).Scan(&tp.ID, &tp.TrackedEntityID, &trackedType, &tp.CreatedAt)
	if err != nil {
		return nil, translate(err, "failed to get tracked payment %s", id)
	}
	tp.Type = domain.TrackedPaymentType(trackedType)
	return &tp, nil
}

// optionRepository implements domain.OtcOptionRepository
type optionRepository struct {
	q querier
}

const optionColumns = `
	id, offer_id, stock_id, buyer_id, seller_id, amount,
	strike_price, premium, settlement_date, used, pending_exercise_id`

// GetByID retrieves an option by its ID
func (r *optionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OtcOption, error) {
	query := `SELECT ` + optionColumns + ` FROM otc_options WHERE id = $1`

	option, err := scanOption(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "failed to get option %s", id)
	}
	return option, nil
}

// GetForUpdate retrieves an option and locks its row until the transaction ends
func (r *optionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.OtcOption, error) {
	query := `SELECT ` + optionColumns + ` FROM otc_options WHERE id = $1 FOR UPDATE`

	option, err := scanOption(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "failed to lock option %s", id)
	}
	return option, nil
}

// Create creates a new option
func (r *optionRepository) Create(ctx context.Context, option *domain.OtcOption) error {
	query := `
		INSERT INTO otc_options (` + optionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		option.ID,
		option.OfferID,
		option.StockID,
		option.BuyerID,
		option.SellerID,
		option.Amount,
		option.StrikePrice.String(),
		option.Premium.String(),
		option.SettlementDate,
		option.Used,
		option.PendingExercise,
	)
	if err != nil {
		return translate(err, "failed to create option %s", option.ID)
	}
	return nil
}

// Update persists the mutable fields of an option
func (r *optionRepository) Update(ctx context.Context, option *domain.OtcOption) error {
	query := `UPDATE otc_options SET used = $1, pending_exercise_id = $2 WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, option.Used, option.PendingExercise, option.ID)
	if err != nil {
		return fmt.Errorf("failed to update option: %w", err)
	}
	return expectOneRow(result, "option %s", option.ID)
}

// ListByBuyer retrieves a buyer's options, latest settlement date first
func (r *optionRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*domain.OtcOption, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM otc_options
		WHERE buyer_id = $1
		ORDER BY settlement_date DESC
	`

	rows, err := r.q.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	defer rows.Close()

	options := make([]*domain.OtcOption, 0)
	for rows.Next() {
		option, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}

func scanOption(row rowScanner) (*domain.OtcOption, error) {
	var option domain.OtcOption
	var strikeStr, premiumStr string

	err := row.Scan(
		&option.ID,
		&option.OfferID,
		&option.StockID,
		&option.BuyerID,
		&option.SellerID,
		&option.Amount,
		&strikeStr,
		&premiumStr,
		&option.SettlementDate,
		&option.Used,
		&option.PendingExercise,
	)
	if err != nil {
		return nil, err
	}

	option.StrikePrice, err = parseDecimal(strikeStr, "strike_price")
	if err != nil {
		return nil, err
	}
	option.Premium, err = parseDecimal(premiumStr, "premium")
	if err != nil {
		return nil, err
	}
	return &option, nil
}

// offerRepository implements domain.OtcOfferRepository
type offerRepository struct {
	q querier
}

const offerColumns = `
	id, stock_id, buyer_id, seller_id, amount, price_per_stock, premium,
	settlement_date, status, last_modified, last_modified_by_id`

// GetByID retrieves an offer by its ID
func (r *offerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OtcOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM otc_offers WHERE id = $1`

	offer, err := scanOffer(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "failed to get offer %s", id)
	}
	return offer, nil
}

// Create creates a new offer
func (r *offerRepository) Create(ctx context.Context, offer *domain.OtcOffer) error {
	query := `
		INSERT INTO otc_offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		offer.ID,
		offer.StockID,
		offer.BuyerID,
		offer.SellerID,
		offer.Amount,
		offer.PricePerStock.String(),
		offer.Premium.String(),
		offer.SettlementDate,
		string(offer.Status),
		offer.LastModified,
		offer.LastModifiedByID,
	)
	if err != nil {
		return translate(err, "failed to create offer %s", offer.ID)
	}
	return nil
}

// Update persists the negotiable terms and status of an offer
func (r *offerRepository) Update(ctx context.Context, offer *domain.OtcOffer) error {
	query := `
		UPDATE otc_offers
		SET amount = $1, price_per_stock = $2, premium = $3, settlement_date = $4,
			status = $5, last_modified = $6, last_modified_by_id = $7
		WHERE id = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		offer.Amount,
		offer.PricePerStock.String(),
		offer.Premium.String(),
		offer.SettlementDate,
		string(offer.Status),
		offer.LastModified,
		offer.LastModifiedByID,
		offer.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}
	return expectOneRow(result, "offer %s", offer.ID)
}

// ListByParticipant retrieves offers in status where the user is buyer or seller, most recently modified first
func (r *offerRepository) ListByParticipant(ctx context.Context, userID int64, status domain.OtcOfferStatus) ([]*domain.OtcOffer, error) {
	query := `
		SELECT ` + offerColumns + `
		FROM otc_offers
		WHERE status = $1 AND (buyer_id = $2 OR seller_id = $2)
		ORDER BY last_modified DESC
	`

	rows, err := r.q.QueryContext(ctx, query, string(status), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]*domain.OtcOffer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}
	return offers, nil
}

func scanOffer(row rowScanner) (*domain.OtcOffer, error) {
	var offer domain.OtcOffer
	var priceStr, premiumStr, status string

	err := row.Scan(
		&offer.ID,
		&offer.StockID,
		&offer.BuyerID,
		&offer.SellerID,
		&offer.Amount,
		&priceStr,
		&premiumStr,
		&offer.SettlementDate,
		&status,
		&offer.LastModified,
		&offer.LastModifiedByID,
	)
	if err != nil {
		return nil, err
	}
	offer.Status = domain.OtcOfferStatus(status)

	offer.PricePerStock, err = parseDecimal(priceStr, "price_per_stock")
	if err != nil {
		return nil, err
	}
	offer.Premium, err = parseDecimal(premiumStr, "premium")
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

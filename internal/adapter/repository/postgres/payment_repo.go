package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// paymentRepository implements domain.PaymentRepository
type paymentRepository struct {
	q querier
}

const paymentColumns = `
	id, kind, client_id, sender_account_number, receiver_account_number, receiver_client_id,
	amount, out_amount, status, created_at, completed_at,
	payment_code, purpose_of_payment, reference_number, sender_name,
	callback_id, failure_reason`

// Create creates a new payment
func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	var receiverClientID sql.NullInt64
	if payment.ReceiverClientID != nil {
		receiverClientID = sql.NullInt64{Int64: *payment.ReceiverClientID, Valid: true}
	}
	var completedAt sql.NullTime
	if payment.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *payment.CompletedAt, Valid: true}
	}
	var callbackID uuid.NullUUID
	if payment.CallbackID != nil {
		callbackID = uuid.NullUUID{UUID: *payment.CallbackID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		string(payment.Kind),
		payment.ClientID,
		payment.SenderAccountNumber,
		payment.ReceiverAccountNumber,
		receiverClientID,
		payment.Amount.String(),
		nullDecimal(payment.OutAmount),
		string(payment.Status),
		payment.CreatedAt,
		completedAt,
		payment.PaymentCode,
		payment.PurposeOfPayment,
		payment.ReferenceNumber,
		payment.SenderName,
		callbackID,
		payment.FailureReason,
	)
	if err != nil {
		return translate(err, "failed to create payment %s", payment.ID)
	}
	return nil
}

// GetByID retrieves a payment by its ID
func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "failed to get payment %s", id)
	}
	return payment, nil
}

// GetForUpdate retrieves a payment and locks its row until the transaction ends
func (r *paymentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "failed to lock payment %s", id)
	}
	return payment, nil
}

// Transition persists the payment's new status only if the stored status still equals from
func (r *paymentRepository) Transition(ctx context.Context, payment *domain.Payment, from domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, out_amount = $2, completed_at = $3, failure_reason = $4
		WHERE id = $5 AND status = $6
	`

	var completedAt sql.NullTime
	if payment.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *payment.CompletedAt, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		string(payment.Status),
		nullDecimal(payment.OutAmount),
		completedAt,
		payment.FailureReason,
		payment.ID,
		string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition payment %s: %w", payment.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var kind, status string
	var receiverClientID sql.NullInt64
	var amountStr string
	var outAmount sql.NullString
	var completedAt sql.NullTime
	var callbackID uuid.NullUUID

	err := row.Scan(
		&payment.ID,
		&kind,
		&payment.ClientID,
		&payment.SenderAccountNumber,
		&payment.ReceiverAccountNumber,
		&receiverClientID,
		&amountStr,
		&outAmount,
		&status,
		&payment.CreatedAt,
		&completedAt,
		&payment.PaymentCode,
		&payment.PurposeOfPayment,
		&payment.ReferenceNumber,
		&payment.SenderName,
		&callbackID,
		&payment.FailureReason,
	)
	if err != nil {
		return nil, err
	}

	payment.Kind = domain.PaymentKind(kind)
	payment.Status = domain.PaymentStatus(status)
	if receiverClientID.Valid {
		payment.ReceiverClientID = &receiverClientID.Int64
	}
	if completedAt.Valid {
		payment.CompletedAt = &completedAt.Time
	}
	if callbackID.Valid {
		payment.CallbackID = &callbackID.UUID
	}

	payment.Amount, err = parseDecimal(amountStr, "amount")
	if err != nil {
		return nil, err
	}
	payment.OutAmount, err = parseNullDecimal(outAmount, "out_amount")
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

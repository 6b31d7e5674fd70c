package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes the flows that create payments
type PaymentKind string

const (
	PaymentKindTransfer PaymentKind = "TRANSFER"
	PaymentKindBill     PaymentKind = "PAYMENT"
	PaymentKindSystem   PaymentKind = "SYSTEM"
)

// PaymentStatus is the persisted state of a payment.
// PENDING_CONFIRMATION is the only non-terminal state.
type PaymentStatus string

const (
	PaymentStatusPendingConfirmation PaymentStatus = "PENDING_CONFIRMATION"
	PaymentStatusCompleted           PaymentStatus = "COMPLETED"
	PaymentStatusCancelled           PaymentStatus = "CANCELLED"
	PaymentStatusFailed              PaymentStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from this status
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPendingConfirmation
}

// Payment represents one settlement intent and its outcome
type Payment struct {
	ID                    uuid.UUID
	Kind                  PaymentKind
	ClientID              int64
	SenderAccountNumber   string
	ReceiverAccountNumber string
	ReceiverClientID      *int64 // NULL unless the receiver resolves to a local account
	Amount                decimal.Decimal     // In the sender's currency
	OutAmount             decimal.NullDecimal // Preview at initiation (transfers), applied amount after execution
	Status                PaymentStatus
	CreatedAt             time.Time
	CompletedAt           *time.Time

	// Bill payment fields
	PaymentCode      string
	PurposeOfPayment string
	ReferenceNumber  string
	SenderName       string

	CallbackID    *uuid.UUID // Tracked payment to notify once the payment settles
	FailureReason string
}

// Validate ensures the payment adheres to domain rules
func (p *Payment) Validate() error {
	if p.SenderAccountNumber == "" {
		return errors.New("payment sender account cannot be empty")
	}
	if p.ReceiverAccountNumber == "" {
		return errors.New("payment receiver account cannot be empty")
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	switch p.Kind {
	case PaymentKindTransfer, PaymentKindSystem:
	case PaymentKindBill:
		if p.PaymentCode == "" {
			return &MissingFieldError{Field: "paymentCode"}
		}
		if p.PurposeOfPayment == "" {
			return &MissingFieldError{Field: "purposeOfPayment"}
		}
	default:
		return errors.New("payment kind must be TRANSFER, PAYMENT, or SYSTEM")
	}

	return nil
}

// EnsurePending returns an error unless the payment can still be executed or rejected
func (p *Payment) EnsurePending() error {
	switch p.Status {
	case PaymentStatusPendingConfirmation:
		return nil
	case PaymentStatusCompleted:
		return ErrPaymentAlreadyCompleted
	default:
		return ErrPaymentNotPending
	}
}

// PaymentOutcome is the terminal result of a payment, delivered to callback consumers
type PaymentOutcome struct {
	PaymentID  uuid.UUID     `json:"paymentId"`
	Kind       PaymentKind   `json:"kind"`
	Status     PaymentStatus `json:"status"`
	CallbackID *uuid.UUID    `json:"callbackId,omitempty"`
	Amount     string        `json:"amount"`
	OutAmount  string        `json:"outAmount,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Outcome builds the outcome record for a payment in a terminal state
func (p *Payment) Outcome(at time.Time) PaymentOutcome {
	outcome := PaymentOutcome{
		PaymentID:  p.ID,
		Kind:       p.Kind,
		Status:     p.Status,
		CallbackID: p.CallbackID,
		Amount:     p.Amount.String(),
		Reason:     p.FailureReason,
		OccurredAt: at,
	}
	if p.OutAmount.Valid {
		outcome.OutAmount = p.OutAmount.Decimal.String()
	}
	return outcome
}

// Succeeded reports whether the outcome represents settled funds
func (o PaymentOutcome) Succeeded() bool {
	return o.Status == PaymentStatusCompleted
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox event
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusDelivered OutboxStatus = "DELIVERED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is a payment outcome written in the same transaction as the state change that produced it
type OutboxEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Payload   PaymentOutcome
	Status    OutboxStatus
	Attempts  int
	NextRunAt time.Time
	LastError string
	CreatedAt time.Time
}

// NewOutboxEvent wraps an outcome for delivery
func NewOutboxEvent(outcome PaymentOutcome) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.New(),
		PaymentID: outcome.PaymentID,
		Payload:   outcome,
		Status:    OutboxStatusPending,
		NextRunAt: outcome.OccurredAt,
		CreatedAt: outcome.OccurredAt,
	}
}

// MarshalPayload encodes the outcome for storage or the wire
func (e *OutboxEvent) MarshalPayload() ([]byte, error) {
	return json.Marshal(e.Payload)
}

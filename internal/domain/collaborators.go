package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Person is the display identity of a client or employee
type Person struct {
	FirstName string
	LastName  string
}

// FullName joins first and last name
func (p Person) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// IdentityService resolves users to display identities
type IdentityService interface {
	GetClientByID(ctx context.Context, id int64) (*Person, error)
	GetEmployeeByID(ctx context.Context, id int64) (*Person, error)
}

// VerificationType discriminates what a verification request approves
type VerificationType string

const (
	VerificationTypeTransfer VerificationType = "TRANSFER"
	VerificationTypePayment  VerificationType = "PAYMENT"
)

// VerificationRequest asks the verification authority to approve a pending payment
type VerificationRequest struct {
	RequesterID     int64            `json:"requesterId"`
	TargetPaymentID uuid.UUID        `json:"targetId"`
	Type            VerificationType `json:"type"`
	Details         string           `json:"details"`
}

// VerificationAuthority receives verification requests. Its decision arrives later
// through HandleVerificationDecision.
type VerificationAuthority interface {
	CreateVerificationRequest(ctx context.Context, req VerificationRequest) error
}

// ExchangeRate is a point-in-time rate snapshot, never cached
type ExchangeRate struct {
	From     string
	To       string
	Rate     decimal.Decimal
	SellRate decimal.Decimal
}

// ExchangeRateGateway supplies live rates between two currencies
type ExchangeRateGateway interface {
	GetExchangeRate(ctx context.Context, from, to string) (*ExchangeRate, error)
}

// OutcomePublisher delivers payment outcomes to their consumers
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome PaymentOutcome) error
}

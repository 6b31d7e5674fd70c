package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrackedPaymentType identifies the business flow waiting on a tracked payment
type TrackedPaymentType string

const (
	TrackedPaymentTypeOtcExercise TrackedPaymentType = "OTC_EXERCISE"
)

// TrackedPayment correlates a business entity with a payment that settles asynchronously.
// Its ID travels with the payment as the callback id.
type TrackedPayment struct {
	ID              uuid.UUID
	TrackedEntityID uuid.UUID // Foreign business key (e.g. OTC option id), not a payment id
	Type            TrackedPaymentType
	CreatedAt       time.Time
}

// OtcOfferStatus is the negotiation state of an OTC offer
type OtcOfferStatus string

const (
	OtcOfferStatusPending   OtcOfferStatus = "PENDING"
	OtcOfferStatusAccepted  OtcOfferStatus = "ACCEPTED"
	OtcOfferStatusRejected  OtcOfferStatus = "REJECTED"
	OtcOfferStatusCancelled OtcOfferStatus = "CANCELLED"
	OtcOfferStatusExercised OtcOfferStatus = "EXERCISED"
)

// OtcOffer is a negotiated offer to buy an option on a seller's public shares
type OtcOffer struct {
	ID               uuid.UUID
	StockID          uuid.UUID
	BuyerID          int64
	SellerID         int64
	Amount           int64
	PricePerStock    decimal.Decimal
	Premium          decimal.Decimal
	SettlementDate   time.Time
	Status           OtcOfferStatus
	LastModified     time.Time
	LastModifiedByID int64
}

// IsParticipant reports whether the user is the buyer or the seller
func (o *OtcOffer) IsParticipant(userID int64) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// CanRespond reports whether the user may accept, reject, or counter the offer.
// Only the counterparty of the last modification may respond.
func (o *OtcOffer) CanRespond(userID int64) bool {
	return o.IsParticipant(userID) && o.LastModifiedByID != userID
}

// Counterparty returns the other participant
func (o *OtcOffer) Counterparty(userID int64) int64 {
	if userID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// Validate ensures the offer adheres to domain rules
func (o *OtcOffer) Validate() error {
	if o.Amount <= 0 {
		return &InvalidOfferError{Reason: "offer amount must be positive"}
	}
	if !o.PricePerStock.IsPositive() {
		return &InvalidOfferError{Reason: "offer price per stock must be positive"}
	}
	if o.Premium.IsNegative() {
		return &InvalidOfferError{Reason: "offer premium cannot be negative"}
	}
	if o.SettlementDate.IsZero() {
		return &InvalidOfferError{Reason: "offer settlement date is required"}
	}
	if o.BuyerID == o.SellerID {
		return &InvalidOfferError{Reason: "offer buyer and seller must differ"}
	}
	return nil
}

// OtcOption is the right granted by an accepted offer to buy shares at the strike price
type OtcOption struct {
	ID             uuid.UUID
	OfferID        uuid.UUID
	StockID        uuid.UUID
	BuyerID        int64
	SellerID       int64
	Amount         int64
	StrikePrice    decimal.Decimal
	Premium        decimal.Decimal
	SettlementDate time.Time
	Used           bool

	// PendingExercise is the tracked payment of an exercise whose outcome has not arrived yet
	PendingExercise uuid.NullUUID
}

// IsPendingExercise reports whether the tracked payment is the exercise in flight
func (o *OtcOption) IsPendingExercise(trackedPaymentID uuid.UUID) bool {
	return o.PendingExercise.Valid && o.PendingExercise.UUID == trackedPaymentID
}

// IsExpired reports whether the settlement date lies before the given day
func (o *OtcOption) IsExpired(now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	settlement := time.Date(o.SettlementDate.Year(), o.SettlementDate.Month(), o.SettlementDate.Day(), 0, 0, 0, 0, now.Location())
	return settlement.Before(today)
}

// TotalPrice is strike price x amount
func (o *OtcOption) TotalPrice() decimal.Decimal {
	return o.StrikePrice.Mul(decimal.NewFromInt(o.Amount))
}

// PortfolioEntry is a user's holding of one stock
type PortfolioEntry struct {
	ID           uuid.UUID
	UserID       int64
	StockID      uuid.UUID
	Amount       int64
	PublicAmount int64 // Shares offered for OTC trading, never more than Amount
	AveragePrice decimal.Decimal
}

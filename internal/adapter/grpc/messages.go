package grpc

import (
	"time"

	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/usecase/otc"
)

// Amounts travel as decimal strings, ids as canonical UUID strings.

type InitiateTransferRequest struct {
	SenderAccountNumber   string `json:"senderAccountNumber"`
	ReceiverAccountNumber string `json:"receiverAccountNumber"`
	Amount                string `json:"amount"`
	ClientID              int64  `json:"clientId"`
}

type InitiateBillPaymentRequest struct {
	SenderAccountNumber   string `json:"senderAccountNumber"`
	ReceiverAccountNumber string `json:"receiverAccountNumber"`
	Amount                string `json:"amount"`
	PaymentCode           string `json:"paymentCode"`
	PurposeOfPayment      string `json:"purposeOfPayment"`
	ReferenceNumber       string `json:"referenceNumber"`
	ClientID              int64  `json:"clientId"`
}

type PaymentIDRequest struct {
	PaymentID string `json:"paymentId"`
}

type RejectPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

type PaymentResponse struct {
	ID                    string     `json:"id"`
	Kind                  string     `json:"kind"`
	Status                string     `json:"status"`
	ClientID              int64      `json:"clientId"`
	SenderAccountNumber   string     `json:"senderAccountNumber"`
	ReceiverAccountNumber string     `json:"receiverAccountNumber"`
	Amount                string     `json:"amount"`
	OutAmount             string     `json:"outAmount,omitempty"`
	PaymentCode           string     `json:"paymentCode,omitempty"`
	PurposeOfPayment      string     `json:"purposeOfPayment,omitempty"`
	ReferenceNumber       string     `json:"referenceNumber,omitempty"`
	SenderName            string     `json:"senderName,omitempty"`
	FailureReason         string     `json:"failureReason,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
}

type ConvertRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type ConvertResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type ExerciseOptionRequest struct {
	OptionID string `json:"optionId"`
	UserID   int64  `json:"userId"`
}

type TrackedPaymentResponse struct {
	ID              string    `json:"id"`
	TrackedEntityID string    `json:"trackedEntityId"`
	Type            string    `json:"type"`
	CreatedAt       time.Time `json:"createdAt"`
}

type OfferTerms struct {
	Amount         int64  `json:"amount"`
	PricePerStock  string `json:"pricePerStock"`
	Premium        string `json:"premium"`
	SettlementDate string `json:"settlementDate"` // YYYY-MM-DD
}

type CreateOfferRequest struct {
	BuyerID  int64      `json:"buyerId"`
	SellerID int64      `json:"sellerId"`
	StockID  string     `json:"stockId"`
	Terms    OfferTerms `json:"terms"`
}

type OfferActionRequest struct {
	OfferID string `json:"offerId"`
	UserID  int64  `json:"userId"`
}

type UpdateOfferRequest struct {
	OfferID string     `json:"offerId"`
	UserID  int64      `json:"userId"`
	Terms   OfferTerms `json:"terms"`
}

type OfferResponse struct {
	ID               string    `json:"id"`
	StockID          string    `json:"stockId"`
	BuyerID          int64     `json:"buyerId"`
	SellerID         int64     `json:"sellerId"`
	Amount           int64     `json:"amount"`
	PricePerStock    string    `json:"pricePerStock"`
	Premium          string    `json:"premium"`
	SettlementDate   string    `json:"settlementDate"`
	Status           string    `json:"status"`
	LastModified     time.Time `json:"lastModified"`
	LastModifiedByID int64     `json:"lastModifiedById"`
	CanInteract      bool      `json:"canInteract"`
	Name             string    `json:"name,omitempty"`
}

type ListOffersRequest struct {
	UserID int64 `json:"userId"`
}

type ListOffersResponse struct {
	Offers []OfferResponse `json:"offers"`
}

type OptionResponse struct {
	ID             string `json:"id"`
	OfferID        string `json:"offerId"`
	StockID        string `json:"stockId"`
	BuyerID        int64  `json:"buyerId"`
	SellerID       int64  `json:"sellerId"`
	Amount         int64  `json:"amount"`
	StrikePrice    string `json:"strikePrice"`
	Premium        string `json:"premium"`
	SettlementDate string `json:"settlementDate"`
	Used           bool   `json:"used"`
	Exercising     bool   `json:"exercising"`
}

type ListOptionsRequest struct {
	UserID int64 `json:"userId"`
	Valid  *bool `json:"valid,omitempty"`
}

type ListOptionsResponse struct {
	Options []OptionResponse `json:"options"`
}

type Empty struct{}

const dateLayout = "2006-01-02"

func paymentToResponse(p *domain.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:                    p.ID.String(),
		Kind:                  string(p.Kind),
		Status:                string(p.Status),
		ClientID:              p.ClientID,
		SenderAccountNumber:   p.SenderAccountNumber,
		ReceiverAccountNumber: p.ReceiverAccountNumber,
		Amount:                p.Amount.String(),
		PaymentCode:           p.PaymentCode,
		PurposeOfPayment:      p.PurposeOfPayment,
		ReferenceNumber:       p.ReferenceNumber,
		SenderName:            p.SenderName,
		FailureReason:         p.FailureReason,
		CreatedAt:             p.CreatedAt,
		CompletedAt:           p.CompletedAt,
	}
	if p.OutAmount.Valid {
		resp.OutAmount = p.OutAmount.Decimal.String()
	}
	return resp
}

func offerToResponse(o *domain.OtcOffer) OfferResponse {
	return OfferResponse{
		ID:               o.ID.String(),
		StockID:          o.StockID.String(),
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		Amount:           o.Amount,
		PricePerStock:    o.PricePerStock.String(),
		Premium:          o.Premium.String(),
		SettlementDate:   o.SettlementDate.Format(dateLayout),
		Status:           string(o.Status),
		LastModified:     o.LastModified,
		LastModifiedByID: o.LastModifiedByID,
	}
}

func offerViewToResponse(v otc.OfferView) OfferResponse {
	resp := offerToResponse(v.Offer)
	resp.CanInteract = v.CanInteract
	resp.Name = v.Name
	return resp
}

func optionToResponse(o *domain.OtcOption) OptionResponse {
	return OptionResponse{
		ID:             o.ID.String(),
		OfferID:        o.OfferID.String(),
		StockID:        o.StockID.String(),
		BuyerID:        o.BuyerID,
		SellerID:       o.SellerID,
		Amount:         o.Amount,
		StrikePrice:    o.StrikePrice.String(),
		Premium:        o.Premium.String(),
		SettlementDate: o.SettlementDate.Format(dateLayout),
		Used:           o.Used,
		Exercising:     o.PendingExercise.Valid,
	}
}

func (r *InitiateTransferRequest) ActorID() int64    { return r.ClientID }
func (r *InitiateBillPaymentRequest) ActorID() int64 { return r.ClientID }
func (r *ExerciseOptionRequest) ActorID() int64      { return r.UserID }
func (r *CreateOfferRequest) ActorID() int64         { return r.BuyerID }
func (r *OfferActionRequest) ActorID() int64         { return r.UserID }
func (r *UpdateOfferRequest) ActorID() int64         { return r.UserID }
func (r *ListOffersRequest) ActorID() int64          { return r.UserID }
func (r *ListOptionsRequest) ActorID() int64         { return r.UserID }

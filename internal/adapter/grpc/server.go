package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/simaogato/settlement-backend/internal/usecase/conversion"
	"github.com/simaogato/settlement-backend/internal/usecase/otc"
	"github.com/simaogato/settlement-backend/internal/usecase/settlement"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "settlement.v1.SettlementService"

// SettlementAPI is the public RPC surface
type SettlementAPI interface {
	InitiateTransfer(ctx context.Context, req *InitiateTransferRequest) (*PaymentResponse, error)
	ConfirmTransfer(ctx context.Context, req *PaymentIDRequest) (*PaymentResponse, error)
	InitiateBillPayment(ctx context.Context, req *InitiateBillPaymentRequest) (*PaymentResponse, error)
	ConfirmBillPayment(ctx context.Context, req *PaymentIDRequest) (*PaymentResponse, error)
	RejectPayment(ctx context.Context, req *RejectPaymentRequest) (*PaymentResponse, error)
	GetPayment(ctx context.Context, req *PaymentIDRequest) (*PaymentResponse, error)
	ConvertAmount(ctx context.Context, req *ConvertRequest) (*ConvertResponse, error)
	ExerciseOption(ctx context.Context, req *ExerciseOptionRequest) (*TrackedPaymentResponse, error)
	CreateOffer(ctx context.Context, req *CreateOfferRequest) (*OfferResponse, error)
	AcceptOffer(ctx context.Context, req *OfferActionRequest) (*OptionResponse, error)
	RejectOffer(ctx context.Context, req *OfferActionRequest) (*Empty, error)
	UpdateOffer(ctx context.Context, req *UpdateOfferRequest) (*OfferResponse, error)
	CancelOffer(ctx context.Context, req *OfferActionRequest) (*Empty, error)
	ListActiveOffers(ctx context.Context, req *ListOffersRequest) (*ListOffersResponse, error)
	ListOptions(ctx context.Context, req *ListOptionsRequest) (*ListOptionsResponse, error)
}

// ServiceDesc describes SettlementAPI to grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SettlementAPI)(nil),
	Methods: []grpc.MethodDesc{
		unary("InitiateTransfer", SettlementAPI.InitiateTransfer),
		unary("ConfirmTransfer", SettlementAPI.ConfirmTransfer),
		unary("InitiateBillPayment", SettlementAPI.InitiateBillPayment),
		unary("ConfirmBillPayment", SettlementAPI.ConfirmBillPayment),
		unary("RejectPayment", SettlementAPI.RejectPayment),
		unary("GetPayment", SettlementAPI.GetPayment),
		unary("ConvertAmount", SettlementAPI.ConvertAmount),
		unary("ExerciseOption", SettlementAPI.ExerciseOption),
		unary("CreateOffer", SettlementAPI.CreateOffer),
		unary("AcceptOffer", SettlementAPI.AcceptOffer),
		unary("RejectOffer", SettlementAPI.RejectOffer),
		unary("UpdateOffer", SettlementAPI.UpdateOffer),
		unary("CancelOffer", SettlementAPI.CancelOffer),
		unary("ListActiveOffers", SettlementAPI.ListActiveOffers),
		unary("ListOptions", SettlementAPI.ListOptions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "settlement/v1/settlement.json",
}

// RegisterSettlementAPI registers srv on s
func RegisterSettlementAPI(s grpc.ServiceRegistrar, srv SettlementAPI) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(SettlementAPI, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			api := srv.(SettlementAPI)
			if interceptor == nil {
				return call(api, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(api, ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// Server implements SettlementAPI
type Server struct {
	SettlementService *settlement.SettlementService
	OtcService        *otc.OtcService
	Table             *conversion.Table
	Logger            *zap.Logger
}

// NewServer creates a new gRPC server instance
func NewServer(settlementService *settlement.SettlementService, otcService *otc.OtcService, logger *zap.Logger) *Server {
	return &Server{
		SettlementService: settlementService,
		OtcService:        otcService,
		Table:             conversion.DefaultTable(),
		Logger:            logger,
	}
}

// InitiateTransfer handles the InitiateTransfer RPC
func (s *Server) InitiateTransfer(ctx context.Context, req *InitiateTransferRequest) (*PaymentResponse, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}

	payment, err := s.SettlementService.InitiateTransfer(ctx, settlement.TransferInput{
		SenderAccountNumber:   req.SenderAccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                amount,
		ClientID:              req.ClientID,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return paymentToResponse(payment), nil
}

// ConfirmTransfer handles the ConfirmTransfer RPC
func (s *Server) ConfirmTransfer(ctx context.Context, req *PaymentIDRequest) (*PaymentResponse, error) {
	paymentID, err := parseUUID("paymentId", req.PaymentID)
	if err != nil {
		return nil, err
	}

	payment, err := s.SettlementService.ConfirmTransfer(ctx, paymentID)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentToResponse(payment), nil
}

// InitiateBillPayment handles the InitiateBillPayment RPC
func (s *Server) InitiateBillPayment(ctx context.Context, req *InitiateBillPaymentRequest) (*PaymentResponse, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}

	payment, err := s.SettlementService.InitiateBillPayment(ctx, settlement.BillPaymentInput{
		SenderAccountNumber:   req.SenderAccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                amount,
		PaymentCode:           req.PaymentCode,
		PurposeOfPayment:      req.PurposeOfPayment,
		ReferenceNumber:       req.ReferenceNumber,
		ClientID:              req.ClientID,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return paymentToResponse(payment), nil
}

// ConfirmBillPayment handles the ConfirmBillPayment RPC
func (s *Server) ConfirmBillPayment(ctx context.Context, req *PaymentIDRequest) (*PaymentResponse, error) {
	paymentID, err := parseUUID("paymentId", req.PaymentID)
	if err != nil {
		return nil, err
	}

	payment, err := s.SettlementService.ConfirmBillPayment(ctx, paymentID)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentToResponse(payment), nil
}

// RejectPayment handles the RejectPayment RPC
func (s *Server) RejectPayment(ctx context.Context, req *RejectPaymentRequest) (*PaymentResponse, error) {
	paymentID, err := parseUUID("paymentId", req.PaymentID)
	if err != nil {
		return nil, err
	}

	payment, err := s.SettlementService.RejectPayment(ctx, paymentID, req.Reason)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentToResponse(payment), nil
}

// GetPayment handles the GetPayment RPC
func (s *Server) GetPayment(ctx context.Context, req *PaymentIDRequest) (*PaymentResponse, error) {
	paymentID, err := parseUUID("paymentId", req.PaymentID)
	if err != nil {
		return nil, err
	}

	payment, err := s.SettlementService.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentToResponse(payment), nil
}

// ConvertAmount handles the ConvertAmount RPC using the fixed conversion table
func (s *Server) ConvertAmount(ctx context.Context, req *ConvertRequest) (*ConvertResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, invalidArgument("amount", err)
	}

	converted, err := s.Table.Convert(amount, req.Currency)
	if err != nil {
		return nil, mapError(err)
	}
	return &ConvertResponse{Amount: converted.String(), Currency: req.Currency}, nil
}

// ExerciseOption handles the ExerciseOption RPC
func (s *Server) ExerciseOption(ctx context.Context, req *ExerciseOptionRequest) (*TrackedPaymentResponse, error) {
	optionID, err := parseUUID("optionId", req.OptionID)
	if err != nil {
		return nil, err
	}

	tp, err := s.OtcService.ExerciseOption(ctx, optionID, req.UserID)
	if err != nil {
		if tp != nil {
			s.Logger.Warn("option exercise payment failed",
				zap.String("tracked_payment_id", tp.ID.String()),
				zap.Error(err),
			)
		}
		return nil, mapError(err)
	}

	return &TrackedPaymentResponse{
		ID:              tp.ID.String(),
		TrackedEntityID: tp.TrackedEntityID.String(),
		Type:            string(tp.Type),
		CreatedAt:       tp.CreatedAt,
	}, nil
}

// CreateOffer handles the CreateOffer RPC
func (s *Server) CreateOffer(ctx context.Context, req *CreateOfferRequest) (*OfferResponse, error) {
	stockID, err := parseUUID("stockId", req.StockID)
	if err != nil {
		return nil, err
	}
	terms, err := parseTerms(req.Terms)
	if err != nil {
		return nil, err
	}

	offer, err := s.OtcService.CreateOffer(ctx, otc.CreateOfferInput{
		BuyerID:  req.BuyerID,
		SellerID: req.SellerID,
		StockID:  stockID,
		Terms:    terms,
	})
	if err != nil {
		return nil, mapError(err)
	}
	resp := offerToResponse(offer)
	return &resp, nil
}

// AcceptOffer handles the AcceptOffer RPC
func (s *Server) AcceptOffer(ctx context.Context, req *OfferActionRequest) (*OptionResponse, error) {
	offerID, err := parseUUID("offerId", req.OfferID)
	if err != nil {
		return nil, err
	}

	option, err := s.OtcService.AcceptOffer(ctx, offerID, req.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	resp := optionToResponse(option)
	return &resp, nil
}

// RejectOffer handles the RejectOffer RPC
func (s *Server) RejectOffer(ctx context.Context, req *OfferActionRequest) (*Empty, error) {
	offerID, err := parseUUID("offerId", req.OfferID)
	if err != nil {
		return nil, err
	}

	if err := s.OtcService.RejectOffer(ctx, offerID, req.UserID); err != nil {
		return nil, mapError(err)
	}
	return &Empty{}, nil
}

// UpdateOffer handles the UpdateOffer RPC
func (s *Server) UpdateOffer(ctx context.Context, req *UpdateOfferRequest) (*OfferResponse, error) {
	offerID, err := parseUUID("offerId", req.OfferID)
	if err != nil {
		return nil, err
	}
	terms, err := parseTerms(req.Terms)
	if err != nil {
		return nil, err
	}

	offer, err := s.OtcService.UpdateOffer(ctx, offerID, req.UserID, terms)
	if err != nil {
		return nil, mapError(err)
	}
	resp := offerToResponse(offer)
	return &resp, nil
}

// CancelOffer handles the CancelOffer RPC
func (s *Server) CancelOffer(ctx context.Context, req *OfferActionRequest) (*Empty, error) {
	offerID, err := parseUUID("offerId", req.OfferID)
	if err != nil {
		return nil, err
	}

	if err := s.OtcService.CancelOffer(ctx, offerID, req.UserID); err != nil {
		return nil, mapError(err)
	}
	return &Empty{}, nil
}

// ListActiveOffers handles the ListActiveOffers RPC
func (s *Server) ListActiveOffers(ctx context.Context, req *ListOffersRequest) (*ListOffersResponse, error) {
	views, err := s.OtcService.ListActiveOffers(ctx, req.UserID)
	if err != nil {
		return nil, mapError(err)
	}

	offers := make([]OfferResponse, 0, len(views))
	for _, view := range views {
		offers = append(offers, offerViewToResponse(view))
	}
	return &ListOffersResponse{Offers: offers}, nil
}

// ListOptions handles the ListOptions RPC
func (s *Server) ListOptions(ctx context.Context, req *ListOptionsRequest) (*ListOptionsResponse, error) {
	options, err := s.OtcService.ListOptions(ctx, req.UserID, req.Valid)
	if err != nil {
		return nil, mapError(err)
	}

	resp := make([]OptionResponse, 0, len(options))
	for _, option := range options {
		resp = append(resp, optionToResponse(option))
	}
	return &ListOptionsResponse{Options: resp}, nil
}

func parseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, invalidArgument(field, err)
	}
	return id, nil
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, invalidArgument(field, err)
	}
	return amount, nil
}

func parseTerms(terms OfferTerms) (otc.OfferTerms, error) {
	price, err := parseAmount("pricePerStock", terms.PricePerStock)
	if err != nil {
		return otc.OfferTerms{}, err
	}
	premium, err := parseAmount("premium", terms.Premium)
	if err != nil {
		return otc.OfferTerms{}, err
	}
	settlementDate, err := time.Parse(dateLayout, terms.SettlementDate)
	if err != nil {
		return otc.OfferTerms{}, invalidArgument("settlementDate", err)
	}

	return otc.OfferTerms{
		Amount:         terms.Amount,
		PricePerStock:  price,
		Premium:        premium,
		SettlementDate: settlementDate,
	}, nil
}

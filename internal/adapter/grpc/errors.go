package grpc

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/simaogato/settlement-backend/internal/domain"
)

const errorDomain = "settlement"

var statusCodes = map[string]codes.Code{
	"ACCOUNT_NOT_FOUND":           codes.NotFound,
	"PAYMENT_NOT_FOUND":           codes.NotFound,
	"CURRENCY_NOT_FOUND":          codes.NotFound,
	"TRACKED_PAYMENT_NOT_FOUND":   codes.NotFound,
	"OPTION_NOT_FOUND":            codes.NotFound,
	"OFFER_NOT_FOUND":             codes.NotFound,
	"PORTFOLIO_ENTRY_NOT_FOUND":   codes.NotFound,
	"MISSING_FIELD":               codes.InvalidArgument,
	"INVALID_AMOUNT":              codes.InvalidArgument,
	"CURRENCY_MISMATCH":           codes.InvalidArgument,
	"PAYMENT_KIND_MISMATCH":       codes.InvalidArgument,
	"INVALID_PUBLIC_AMOUNT":       codes.InvalidArgument,
	"INVALID_OFFER":               codes.InvalidArgument,
	"INSUFFICIENT_FUNDS":          codes.FailedPrecondition,
	"INSUFFICIENT_SHARES":         codes.FailedPrecondition,
	"PAYMENT_NOT_PENDING":         codes.FailedPrecondition,
	"OPTION_EXPIRED":              codes.FailedPrecondition,
	"EXERCISE_IN_PROGRESS":        codes.FailedPrecondition,
	"BANK_ACCOUNT_NOT_FOUND":      codes.FailedPrecondition,
	"PAYMENT_ALREADY_COMPLETED":   codes.AlreadyExists,
	"ALREADY_EXERCISED":           codes.AlreadyExists,
	"DUPLICATE_RECORD":            codes.AlreadyExists,
	"UNAUTHORIZED_ACCESS":         codes.PermissionDenied,
	"NOT_ALLOWED_TO_MODIFY_OFFER": codes.PermissionDenied,
	"EXCHANGE_RATE_UNAVAILABLE":   codes.Unavailable,
}

// mapError converts a usecase error to a gRPC status carrying an ErrorInfo
// whose reason is the stable error code
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	reason := domain.Code(err)
	code, ok := statusCodes[reason]
	message := err.Error()
	if !ok {
		code = codes.Internal
		message = "internal error"
	}

	st := status.New(code, message)
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   errorDomain,
		Metadata: domain.Details(err),
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// invalidArgument reports a malformed request field
func invalidArgument(field string, err error) error {
	st := status.Newf(codes.InvalidArgument, "invalid %s: %v", field, err)
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   "INVALID_ARGUMENT",
		Domain:   errorDomain,
		Metadata: map[string]string{"field": field},
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

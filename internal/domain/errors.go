package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrRecordNotFound is returned by repositories when a lookup matches no row.
// Services translate it into the error kind of the entity they were looking for.
var ErrRecordNotFound = errors.New("record not found")

// ErrDuplicateRecord is returned by repositories when an insert hits an existing key
var ErrDuplicateRecord = errors.New("record already exists")

// Error kinds. Each one has a stable code, see Code.
var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrCurrencyMismatch        = errors.New("currency mismatch")
	ErrCurrencyNotFound        = errors.New("currency not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentAlreadyCompleted = errors.New("payment already completed")
	ErrPaymentNotPending       = errors.New("payment is not pending confirmation")
	ErrPaymentKindMismatch     = errors.New("payment kind does not match operation")
	ErrBankAccountNotFound     = errors.New("bank account not found")
	ErrMissingField            = errors.New("missing field")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrUnauthorizedAccess      = errors.New("unauthorized access")
	ErrExchangeRateUnavailable = errors.New("exchange rate unavailable")
	ErrTrackedPaymentNotFound  = errors.New("tracked payment not found")
	ErrOptionNotFound          = errors.New("otc option not found")
	ErrAlreadyExercised        = errors.New("otc option already exercised")
	ErrExerciseInProgress      = errors.New("otc option exercise already in progress")
	ErrOptionExpired           = errors.New("otc option settlement date has passed")
	ErrOfferNotFound           = errors.New("otc offer not found")
	ErrNotAllowedToModifyOffer = errors.New("not allowed to modify offer")
	ErrPortfolioEntryNotFound  = errors.New("portfolio entry not found")
	ErrInvalidPublicAmount     = errors.New("not enough public shares to fulfill the offer")
	ErrInsufficientShares      = errors.New("insufficient shares")
	ErrInvalidOffer            = errors.New("invalid offer")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAccountNotFound, "ACCOUNT_NOT_FOUND"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrCurrencyMismatch, "CURRENCY_MISMATCH"},
	{ErrCurrencyNotFound, "CURRENCY_NOT_FOUND"},
	{ErrPaymentNotFound, "PAYMENT_NOT_FOUND"},
	{ErrPaymentAlreadyCompleted, "PAYMENT_ALREADY_COMPLETED"},
	{ErrPaymentNotPending, "PAYMENT_NOT_PENDING"},
	{ErrPaymentKindMismatch, "PAYMENT_KIND_MISMATCH"},
	{ErrBankAccountNotFound, "BANK_ACCOUNT_NOT_FOUND"},
	{ErrMissingField, "MISSING_FIELD"},
	{ErrInvalidAmount, "INVALID_AMOUNT"},
	{ErrUnauthorizedAccess, "UNAUTHORIZED_ACCESS"},
	{ErrExchangeRateUnavailable, "EXCHANGE_RATE_UNAVAILABLE"},
	{ErrTrackedPaymentNotFound, "TRACKED_PAYMENT_NOT_FOUND"},
	{ErrOptionNotFound, "OPTION_NOT_FOUND"},
	{ErrAlreadyExercised, "ALREADY_EXERCISED"},
	{ErrExerciseInProgress, "EXERCISE_IN_PROGRESS"},
	{ErrOptionExpired, "OPTION_EXPIRED"},
	{ErrOfferNotFound, "OFFER_NOT_FOUND"},
	{ErrNotAllowedToModifyOffer, "NOT_ALLOWED_TO_MODIFY_OFFER"},
	{ErrPortfolioEntryNotFound, "PORTFOLIO_ENTRY_NOT_FOUND"},
	{ErrInvalidPublicAmount, "INVALID_PUBLIC_AMOUNT"},
	{ErrInsufficientShares, "INSUFFICIENT_SHARES"},
	{ErrInvalidOffer, "INVALID_OFFER"},
	{ErrDuplicateRecord, "DUPLICATE_RECORD"},
}

// Code returns the stable discriminator for an error kind, or "INTERNAL" for anything else
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// Retryable reports whether an operation that failed with err may succeed when repeated.
// Unclassified errors and an unavailable exchange rate are retryable; every other
// error kind is a business rejection that repeats on every attempt.
func Retryable(err error) bool {
	switch Code(err) {
	case "INTERNAL", "EXCHANGE_RATE_UNAVAILABLE":
		return true
	default:
		return false
	}
}

// Details returns the structured fields carried by a typed error, if any
func Details(err error) map[string]string {
	var d interface{ Details() map[string]string }
	if errors.As(err, &d) {
		return d.Details()
	}
	return nil
}

// AccountRole identifies which side of a payment an account plays
type AccountRole string

const (
	AccountRoleSender   AccountRole = "sender"
	AccountRoleReceiver AccountRole = "receiver"
)

// AccountNotFoundError reports a missing sender or receiver account
type AccountNotFoundError struct {
	Role   AccountRole
	Number string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%s account not found: %s", e.Role, e.Number)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

func (e *AccountNotFoundError) Details() map[string]string {
	return map[string]string{"role": string(e.Role), "accountNumber": e.Number}
}

// InsufficientFundsError carries the balance observed before the attempted debit
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s", e.Available, e.Requested)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

func (e *InsufficientFundsError) Details() map[string]string {
	return map[string]string{"available": e.Available.String(), "requested": e.Requested.String()}
}

// CurrencyNotFoundError reports a currency the fixed conversion table does not know
type CurrencyNotFoundError struct {
	Code string
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("currency not found: %s", e.Code)
}

func (e *CurrencyNotFoundError) Is(target error) bool { return target == ErrCurrencyNotFound }

func (e *CurrencyNotFoundError) Details() map[string]string {
	return map[string]string{"currency": e.Code}
}

// BankAccountNotFoundError reports a currency without a bank intermediary account
type BankAccountNotFoundError struct {
	Currency string
}

func (e *BankAccountNotFoundError) Error() string {
	return fmt.Sprintf("no bank account found for currency: %s", e.Currency)
}

func (e *BankAccountNotFoundError) Is(target error) bool { return target == ErrBankAccountNotFound }

func (e *BankAccountNotFoundError) Details() map[string]string {
	return map[string]string{"currency": e.Currency}
}

// MissingFieldError reports a required request field that was empty
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

func (e *MissingFieldError) Details() map[string]string {
	return map[string]string{"field": e.Field}
}

// PaymentNotFoundError reports a payment id that does not exist
type PaymentNotFoundError struct {
	ID uuid.UUID
}

func (e *PaymentNotFoundError) Error() string {
	return fmt.Sprintf("payment not found: %s", e.ID)
}

func (e *PaymentNotFoundError) Is(target error) bool { return target == ErrPaymentNotFound }

func (e *PaymentNotFoundError) Details() map[string]string {
	return map[string]string{"paymentId": e.ID.String()}
}

// InvalidOfferError reports offer terms that cannot be negotiated
type InvalidOfferError struct {
	Reason string
}

func (e *InvalidOfferError) Error() string { return e.Reason }

func (e *InvalidOfferError) Is(target error) bool { return target == ErrInvalidOffer }

package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/metrics"
	"github.com/simaogato/settlement-backend/internal/usecase/conversion"
	"github.com/simaogato/settlement-backend/internal/usecase/ledger"
	"go.uber.org/zap"
)

// TransferInput represents a peer transfer request
type TransferInput struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	ClientID              int64
}

// BillPaymentInput represents a reference-currency bill payment request
type BillPaymentInput struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	PaymentCode           string
	PurposeOfPayment      string
	ReferenceNumber       string
	ClientID              int64
}

// SystemPaymentInput represents a system-initiated payment that skips verification
type SystemPaymentInput struct {
	ClientID              int64
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	PaymentCode           string
	PurposeOfPayment      string
	CallbackID            uuid.UUID
}

// DefaultVerificationTimeout bounds a call to the verification authority
const DefaultVerificationTimeout = 5 * time.Second

// verificationDetails is the snapshot the verification authority shows the approver
type verificationDetails struct {
	FromAccountNumber string          `json:"fromAccountNumber"`
	ToAccountNumber   string          `json:"toAccountNumber"`
	Amount            decimal.Decimal `json:"amount"`
}

// SettlementService moves funds between accounts.
// Every public operation runs as one unit of work: a failure at any step leaves no partial state.
type SettlementService struct {
	UnitOfWork   domain.UnitOfWork
	Rates        domain.ExchangeRateGateway
	Verification domain.VerificationAuthority
	Identity     domain.IdentityService
	Table        *conversion.Table
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time

	// VerificationTimeout bounds the verification call made while the initiating transaction is open
	VerificationTimeout time.Duration
}

// NewSettlementService creates a new SettlementService instance
func NewSettlementService(
	uow domain.UnitOfWork,
	rates domain.ExchangeRateGateway,
	verification domain.VerificationAuthority,
	identity domain.IdentityService,
	logger *zap.Logger,
	m *metrics.Metrics,
) *SettlementService {
	return &SettlementService{
		UnitOfWork:   uow,
		Rates:        rates,
		Verification: verification,
		Identity:     identity,
		Table:        conversion.DefaultTable(),
		Logger:       logger,
		Metrics:      m,
		Now:          time.Now,

		VerificationTimeout: DefaultVerificationTimeout,
	}
}

// InitiateTransfer validates a transfer, records it as PENDING_CONFIRMATION with a
// preview of the converted amount and asks the verification authority for approval.
// No balance changes.
func (s *SettlementService) InitiateTransfer(ctx context.Context, input TransferInput) (*domain.Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var payment *domain.Payment
	requested := false
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		sender, err := loadAccount(ctx, repos, input.SenderAccountNumber, domain.AccountRoleSender)
		if err != nil {
			return err
		}
		receiver, err := loadAccount(ctx, repos, input.ReceiverAccountNumber, domain.AccountRoleReceiver)
		if err != nil {
			return err
		}
		if err := ensureOwner(sender, input.ClientID); err != nil {
			return err
		}
		if !sender.HasFunds(input.Amount) {
			return &domain.InsufficientFundsError{Available: sender.Balance, Requested: input.Amount}
		}

		preview := input.Amount
		if sender.Currency != receiver.Currency {
			rate, err := s.rate(ctx, sender.Currency, receiver.Currency)
			if err != nil {
				return err
			}
			preview = domain.RoundAmount(input.Amount.Mul(rate))
		}

		payment = &domain.Payment{
			ID:                    uuid.New(),
			Kind:                  domain.PaymentKindTransfer,
			ClientID:              input.ClientID,
			SenderAccountNumber:   sender.Number,
			ReceiverAccountNumber: receiver.Number,
			ReceiverClientID:      clientOf(receiver),
			Amount:                input.Amount,
			OutAmount:             decimal.NewNullDecimal(preview),
			Status:                domain.PaymentStatusPendingConfirmation,
			CreatedAt:             s.Now(),
		}
		if err := payment.Validate(); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if err := s.requestVerification(ctx, payment, domain.VerificationTypeTransfer); err != nil {
			return err
		}
		requested = true
		return nil
	})
	if err != nil {
		if requested {
			s.logOrphanedVerification(payment, err)
		}
		return nil, err
	}

	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Info("transfer awaiting confirmation",
		zap.String("payment_id", payment.ID.String()),
		zap.String("sender", payment.SenderAccountNumber),
		zap.String("receiver", payment.ReceiverAccountNumber),
		zap.String("amount", payment.Amount.String()),
	)
	return payment, nil
}

// ConfirmTransfer executes an approved transfer.
// The rate is the one in effect now, not the initiation preview. Cross-currency transfers
// route through the bank intermediary account of each currency.
func (s *SettlementService) ConfirmTransfer(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	started := s.Now()

	var payment *domain.Payment
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		payment, err = loadPendingPayment(ctx, repos, paymentID, domain.PaymentKindTransfer)
		if err != nil {
			return err
		}

		sender, err := loadAccount(ctx, repos, payment.SenderAccountNumber, domain.AccountRoleSender)
		if err != nil {
			return err
		}
		receiver, err := loadAccount(ctx, repos, payment.ReceiverAccountNumber, domain.AccountRoleReceiver)
		if err != nil {
			return err
		}

		plan, err := s.transferPlan(ctx, repos, sender, receiver, payment.Amount)
		if err != nil {
			return err
		}

		return s.execute(ctx, repos, payment, plan)
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.ObserveExecution(string(payment.Kind), started)
	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Info("transfer completed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("out_amount", payment.OutAmount.Decimal.String()),
	)
	return payment, nil
}

// InitiateBillPayment validates a bill payment in the reference currency, stamps the
// sender's display name and asks the verification authority for approval.
// The receiver may be outside the bank.
func (s *SettlementService) InitiateBillPayment(ctx context.Context, input BillPaymentInput) (*domain.Payment, error) {
	if input.PaymentCode == "" {
		return nil, &domain.MissingFieldError{Field: "paymentCode"}
	}
	if input.PurposeOfPayment == "" {
		return nil, &domain.MissingFieldError{Field: "purposeOfPayment"}
	}
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var payment *domain.Payment
	requested := false
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		sender, err := loadAccount(ctx, repos, input.SenderAccountNumber, domain.AccountRoleSender)
		if err != nil {
			return err
		}
		if err := ensureOwner(sender, input.ClientID); err != nil {
			return err
		}
		if sender.Currency != conversion.ReferenceCurrency {
			return fmt.Errorf("bill payments must be sent from a %s account, got %s: %w",
				conversion.ReferenceCurrency, sender.Currency, domain.ErrCurrencyMismatch)
		}
		if !sender.HasFunds(input.Amount) {
			return &domain.InsufficientFundsError{Available: sender.Balance, Requested: input.Amount}
		}

		receiver, err := findAccount(ctx, repos, input.ReceiverAccountNumber)
		if err != nil {
			return err
		}

		client, err := s.Identity.GetClientByID(ctx, input.ClientID)
		if err != nil {
			return fmt.Errorf("failed to resolve sender name: %w", err)
		}

		payment = &domain.Payment{
			ID:                    uuid.New(),
			Kind:                  domain.PaymentKindBill,
			ClientID:              input.ClientID,
			SenderAccountNumber:   sender.Number,
			ReceiverAccountNumber: input.ReceiverAccountNumber,
			ReceiverClientID:      clientOf(receiver),
			Amount:                input.Amount,
			Status:                domain.PaymentStatusPendingConfirmation,
			CreatedAt:             s.Now(),
			PaymentCode:           input.PaymentCode,
			PurposeOfPayment:      input.PurposeOfPayment,
			ReferenceNumber:       input.ReferenceNumber,
			SenderName:            client.FullName(),
		}
		if err := payment.Validate(); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if err := s.requestVerification(ctx, payment, domain.VerificationTypePayment); err != nil {
			return err
		}
		requested = true
		return nil
	})
	if err != nil {
		if requested {
			s.logOrphanedVerification(payment, err)
		}
		return nil, err
	}

	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Info("bill payment awaiting confirmation",
		zap.String("payment_id", payment.ID.String()),
		zap.String("sender", payment.SenderAccountNumber),
		zap.String("receiver", payment.ReceiverAccountNumber),
		zap.String("payment_code", payment.PaymentCode),
	)
	return payment, nil
}

// ConfirmBillPayment executes an approved bill payment. A local receiver is credited the
// amount converted with the fixed table. An external receiver is not credited.
func (s *SettlementService) ConfirmBillPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	started := s.Now()

	var payment *domain.Payment
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		payment, err = loadPendingPayment(ctx, repos, paymentID, domain.PaymentKindBill)
		if err != nil {
			return err
		}

		sender, err := loadAccount(ctx, repos, payment.SenderAccountNumber, domain.AccountRoleSender)
		if err != nil {
			return err
		}
		receiver, err := findAccount(ctx, repos, payment.ReceiverAccountNumber)
		if err != nil {
			return err
		}

		rate := decimal.NewFromInt(1)
		if receiver != nil {
			rate, err = s.Table.Rate(receiver.Currency)
			if err != nil {
				return err
			}
		}

		return s.execute(ctx, repos, payment, ledger.BillPlan(sender, receiver, payment.Amount, rate))
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.ObserveExecution(string(payment.Kind), started)
	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Info("bill payment completed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.Bool("external_receiver", payment.ReceiverClientID == nil),
	)
	return payment, nil
}

// RejectPayment cancels a pending payment whose verification was denied
func (s *SettlementService) RejectPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	if reason == "" {
		reason = "verification denied"
	}

	var payment *domain.Payment
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		payment, err = loadPaymentForUpdate(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if err := payment.EnsurePending(); err != nil {
			return err
		}

		payment.Status = domain.PaymentStatusCancelled
		payment.FailureReason = reason
		return s.transition(ctx, repos, payment)
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Info("payment cancelled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reason", reason),
	)
	return payment, nil
}

// HandleVerificationDecision applies the verification authority's decision to a pending payment
func (s *SettlementService) HandleVerificationDecision(ctx context.Context, paymentID uuid.UUID, approved bool) (*domain.Payment, error) {
	if !approved {
		return s.RejectPayment(ctx, paymentID, "")
	}

	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Kind {
	case domain.PaymentKindTransfer:
		return s.ConfirmTransfer(ctx, paymentID)
	case domain.PaymentKindBill:
		return s.ConfirmBillPayment(ctx, paymentID)
	default:
		return nil, fmt.Errorf("%s payments are not verified: %w", payment.Kind, domain.ErrPaymentKindMismatch)
	}
}

// ExecuteSystemPayment creates and executes a payment in one unit of work, bypassing verification.
// When execution fails for a business reason the payment is recorded as FAILED and its
// outcome is still delivered to the callback, then the error is returned.
func (s *SettlementService) ExecuteSystemPayment(ctx context.Context, input SystemPaymentInput) (*domain.Payment, error) {
	started := s.Now()

	payment := newSystemPayment(input, started)
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return s.executeSystem(ctx, repos, payment, input.ClientID)
	})
	if err != nil {
		if domain.Code(err) == "INTERNAL" {
			return nil, err
		}
		return payment, s.recordFailure(ctx, payment, err)
	}

	s.observeSystemPayment(payment, started)
	return payment, nil
}

// ExecuteSystemPaymentWithin executes a system payment inside the caller's unit of work.
// Unlike ExecuteSystemPayment a failure records nothing: the error is returned so the
// caller's transaction rolls back as a whole.
func (s *SettlementService) ExecuteSystemPaymentWithin(ctx context.Context, repos domain.Repositories, input SystemPaymentInput) (*domain.Payment, error) {
	started := s.Now()

	payment := newSystemPayment(input, started)
	if err := payment.Validate(); err != nil {
		return nil, err
	}
	if err := s.executeSystem(ctx, repos, payment, input.ClientID); err != nil {
		return nil, err
	}

	s.observeSystemPayment(payment, started)
	return payment, nil
}

func newSystemPayment(input SystemPaymentInput, at time.Time) *domain.Payment {
	var callbackID *uuid.UUID
	if input.CallbackID != uuid.Nil {
		id := input.CallbackID
		callbackID = &id
	}

	return &domain.Payment{
		ID:                    uuid.New(),
		Kind:                  domain.PaymentKindSystem,
		ClientID:              input.ClientID,
		SenderAccountNumber:   input.SenderAccountNumber,
		ReceiverAccountNumber: input.ReceiverAccountNumber,
		Amount:                input.Amount,
		Status:                domain.PaymentStatusPendingConfirmation,
		CreatedAt:             at,
		PaymentCode:           input.PaymentCode,
		PurposeOfPayment:      input.PurposeOfPayment,
		CallbackID:            callbackID,
	}
}

// executeSystem moves the funds of a system payment and completes it in the caller's unit of work
func (s *SettlementService) executeSystem(ctx context.Context, repos domain.Repositories, payment *domain.Payment, clientID int64) error {
	sender, err := loadAccount(ctx, repos, payment.SenderAccountNumber, domain.AccountRoleSender)
	if err != nil {
		return err
	}
	receiver, err := loadAccount(ctx, repos, payment.ReceiverAccountNumber, domain.AccountRoleReceiver)
	if err != nil {
		return err
	}
	if err := ensureOwner(sender, clientID); err != nil {
		return err
	}
	payment.ReceiverClientID = clientOf(receiver)

	plan, err := s.transferPlan(ctx, repos, sender, receiver, payment.Amount)
	if err != nil {
		return err
	}

	if err := repos.Payments.Create(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return s.execute(ctx, repos, payment, plan)
}

func (s *SettlementService) observeSystemPayment(payment *domain.Payment, started time.Time) {
	s.Metrics.ObserveExecution(string(payment.Kind), started)
	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Info("system payment completed",
		zap.String("payment_id", payment.ID.String()),
		zap.Stringp("callback_id", uuidString(payment.CallbackID)),
		zap.String("amount", payment.Amount.String()),
	)
}

// recordFailure persists a FAILED system payment with its outcome and returns cause
func (s *SettlementService) recordFailure(ctx context.Context, payment *domain.Payment, cause error) error {
	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = cause.Error()
	payment.OutAmount = decimal.NullDecimal{}
	now := s.Now()
	payment.CompletedAt = &now

	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record failed payment: %w", err)
		}
		if err := repos.Outbox.Add(ctx, domain.NewOutboxEvent(payment.Outcome(now))); err != nil {
			return fmt.Errorf("failed to enqueue payment outcome: %w", err)
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("failed to record system payment failure",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return errors.Join(cause, err)
	}

	s.Metrics.ObservePayment(string(payment.Kind), string(payment.Status))
	s.Logger.Warn("system payment failed",
		zap.String("payment_id", payment.ID.String()),
		zap.Stringp("callback_id", uuidString(payment.CallbackID)),
		zap.Error(cause),
	)
	return cause
}

// AccountNumberForClient returns the primary account number of a client
func (s *SettlementService) AccountNumberForClient(ctx context.Context, clientID int64) (string, error) {
	var number string
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		account, err := repos.Accounts.GetPrimaryByOwner(ctx, clientID)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return fmt.Errorf("client %d has no account: %w", clientID, domain.ErrAccountNotFound)
			}
			return err
		}
		number = account.Number
		return nil
	})
	return number, err
}

// GetPayment retrieves a payment by its ID
func (s *SettlementService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		payment, err = repos.Payments.GetByID(ctx, paymentID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return &domain.PaymentNotFoundError{ID: paymentID}
		}
		return err
	})
	return payment, err
}

// transferPlan resolves the bank intermediaries and the live rate when the currencies differ
func (s *SettlementService) transferPlan(ctx context.Context, repos domain.Repositories, sender, receiver *domain.Account, amount decimal.Decimal) (domain.Plan, error) {
	if sender.Currency == receiver.Currency {
		return ledger.TransferPlan(sender, receiver, nil, nil, amount, decimal.NewFromInt(1)), nil
	}

	senderBank, err := bankAccount(ctx, repos, sender.Currency)
	if err != nil {
		return domain.Plan{}, err
	}
	receiverBank, err := bankAccount(ctx, repos, receiver.Currency)
	if err != nil {
		return domain.Plan{}, err
	}
	rate, err := s.rate(ctx, sender.Currency, receiver.Currency)
	if err != nil {
		return domain.Plan{}, err
	}

	return ledger.TransferPlan(sender, receiver, senderBank, receiverBank, amount, rate), nil
}

// execute applies the plan and completes the payment in the caller's unit of work
func (s *SettlementService) execute(ctx context.Context, repos domain.Repositories, payment *domain.Payment, plan domain.Plan) error {
	now := s.Now()
	if err := ledger.Apply(ctx, repos, payment.ID, plan, now); err != nil {
		return err
	}

	payment.Status = domain.PaymentStatusCompleted
	payment.OutAmount = decimal.NewNullDecimal(ledger.CreditedAmount(plan))
	payment.CompletedAt = &now
	return s.transition(ctx, repos, payment)
}

// transition compare-and-swaps the payment out of PENDING_CONFIRMATION and enqueues its outcome
func (s *SettlementService) transition(ctx context.Context, repos domain.Repositories, payment *domain.Payment) error {
	ok, err := repos.Payments.Transition(ctx, payment, domain.PaymentStatusPendingConfirmation)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if !ok {
		current, err := repos.Payments.GetByID(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to reload payment: %w", err)
		}
		if err := current.EnsurePending(); err != nil {
			return err
		}
		return domain.ErrPaymentNotPending
	}

	if err := repos.Outbox.Add(ctx, domain.NewOutboxEvent(payment.Outcome(s.Now()))); err != nil {
		return fmt.Errorf("failed to enqueue payment outcome: %w", err)
	}
	return nil
}

func (s *SettlementService) requestVerification(ctx context.Context, payment *domain.Payment, verificationType domain.VerificationType) error {
	details, err := json.Marshal(verificationDetails{
		FromAccountNumber: payment.SenderAccountNumber,
		ToAccountNumber:   payment.ReceiverAccountNumber,
		Amount:            payment.Amount,
	})
	if err != nil {
		return fmt.Errorf("failed to encode verification details: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.VerificationTimeout)
	defer cancel()

	err = s.Verification.CreateVerificationRequest(ctx, domain.VerificationRequest{
		RequesterID:     payment.ClientID,
		TargetPaymentID: payment.ID,
		Type:            verificationType,
		Details:         string(details),
	})
	if err != nil {
		return fmt.Errorf("failed to create verification request: %w", err)
	}
	return nil
}

// logOrphanedVerification reports a verification request sent for a payment that was never committed
func (s *SettlementService) logOrphanedVerification(payment *domain.Payment, err error) {
	s.Logger.Error("verification request orphaned, payment was not committed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("kind", string(payment.Kind)),
		zap.Error(err),
	)
}

func (s *SettlementService) rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, err := s.Rates.GetExchangeRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s to %s: %w: %w", from, to, domain.ErrExchangeRateUnavailable, err)
	}
	if !rate.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s to %s rate %s: %w", from, to, rate.Rate, domain.ErrExchangeRateUnavailable)
	}
	return rate.Rate, nil
}

func loadAccount(ctx context.Context, repos domain.Repositories, number string, role domain.AccountRole) (*domain.Account, error) {
	account, err := repos.Accounts.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, &domain.AccountNotFoundError{Role: role, Number: number}
		}
		return nil, fmt.Errorf("failed to load %s account: %w", role, err)
	}
	return account, nil
}

// findAccount returns nil without error when the account is not held by this bank
func findAccount(ctx context.Context, repos domain.Repositories, number string) (*domain.Account, error) {
	account, err := repos.Accounts.GetByNumber(ctx, number)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load receiver account: %w", err)
	}
	return account, nil
}

func bankAccount(ctx context.Context, repos domain.Repositories, currency string) (*domain.Account, error) {
	account, err := repos.Accounts.GetSystemAccount(ctx, currency)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, &domain.BankAccountNotFoundError{Currency: currency}
		}
		return nil, fmt.Errorf("failed to load bank account: %w", err)
	}
	return account, nil
}

func loadPaymentForUpdate(ctx context.Context, repos domain.Repositories, id uuid.UUID) (*domain.Payment, error) {
	payment, err := repos.Payments.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, &domain.PaymentNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return payment, nil
}

func loadPendingPayment(ctx context.Context, repos domain.Repositories, id uuid.UUID, kind domain.PaymentKind) (*domain.Payment, error) {
	payment, err := loadPaymentForUpdate(ctx, repos, id)
	if err != nil {
		return nil, err
	}
	if payment.Kind != kind {
		return nil, fmt.Errorf("payment %s is a %s: %w", id, payment.Kind, domain.ErrPaymentKindMismatch)
	}
	if err := payment.EnsurePending(); err != nil {
		return nil, err
	}
	return payment, nil
}

// ensureOwner rejects a client acting on another client's account.
// Company and bank accounts are not owned by a single client and are not checked.
func ensureOwner(account *domain.Account, clientID int64) error {
	if account.OwnerType == domain.OwnerTypeClient && !account.IsOwnedByClient(clientID) {
		return fmt.Errorf("account %s: %w", account.Number, domain.ErrUnauthorizedAccess)
	}
	return nil
}

func clientOf(account *domain.Account) *int64 {
	if account == nil || account.IsBankAccount() {
		return nil
	}
	id := account.OwnerID
	return &id
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

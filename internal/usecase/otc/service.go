package otc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/usecase/portfolio"
	"github.com/simaogato/settlement-backend/internal/usecase/settlement"
	"github.com/simaogato/settlement-backend/internal/usecase/tracking"
	"go.uber.org/zap"
)

const (
	exercisePurpose     = "OTC Exercise Option"
	refundPurpose       = "OTC Exercise Refund"
	exercisePaymentCode = "289"
)

// Bank is the banking side of an option exercise
type Bank interface {
	AccountNumberForClient(ctx context.Context, clientID int64) (string, error)
	ExecuteSystemPayment(ctx context.Context, input settlement.SystemPaymentInput) (*domain.Payment, error)

	// ExecuteSystemPaymentWithin runs the payment inside the caller's unit of work
	ExecuteSystemPaymentWithin(ctx context.Context, repos domain.Repositories, input settlement.SystemPaymentInput) (*domain.Payment, error)
}

// OfferTerms are the negotiable fields of an offer
type OfferTerms struct {
	Amount         int64
	PricePerStock  decimal.Decimal
	Premium        decimal.Decimal
	SettlementDate time.Time
}

// CreateOfferInput represents a buyer's opening offer on a seller's public shares
type CreateOfferInput struct {
	BuyerID  int64
	SellerID int64
	StockID  uuid.UUID
	Terms    OfferTerms
}

// OfferView is an offer as shown to one participant
type OfferView struct {
	Offer       *domain.OtcOffer
	CanInteract bool
	Name        string // Counterparty display name
}

// OtcService negotiates OTC offers and settles option exercises
type OtcService struct {
	UnitOfWork domain.UnitOfWork
	Bank       Bank
	Resolvers  []NameResolver
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewOtcService creates a new OtcService instance.
// Counterparty names are resolved as a client first, then as an employee.
func NewOtcService(uow domain.UnitOfWork, bank Bank, identity domain.IdentityService, logger *zap.Logger) *OtcService {
	return &OtcService{
		UnitOfWork: uow,
		Bank:       bank,
		Resolvers:  []NameResolver{ClientNameResolver(identity), EmployeeNameResolver(identity)},
		Logger:     logger,
		Now:        time.Now,
	}
}

// ExerciseOption starts settlement of an option: it records a tracked payment and asks the
// bank to move strike x amount from buyer to seller. Shares move later, when the payment
// outcome reaches HandleExerciseSuccessfulPayment. Until then the option is marked with the
// exercise in flight and further exercises fail with ErrExerciseInProgress.
func (s *OtcService) ExerciseOption(ctx context.Context, optionID uuid.UUID, userID int64) (*domain.TrackedPayment, error) {
	var option *domain.OtcOption
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		option, err = loadOption(ctx, repos.Options.GetByID, optionID)
		if err != nil {
			return err
		}
		return s.ensureExercisable(option, userID)
	})
	if err != nil {
		return nil, err
	}

	senderAccount, err := s.Bank.AccountNumberForClient(ctx, option.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve buyer account: %w", err)
	}
	receiverAccount, err := s.Bank.AccountNumberForClient(ctx, option.SellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seller account: %w", err)
	}

	var tp *domain.TrackedPayment
	err = s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		locked, err := loadOption(ctx, repos.Options.GetForUpdate, optionID)
		if err != nil {
			return err
		}
		if err := s.ensureExercisable(locked, userID); err != nil {
			return err
		}

		tp, err = tracking.Track(ctx, repos, locked.ID, domain.TrackedPaymentTypeOtcExercise, s.Now())
		if err != nil {
			return err
		}
		locked.PendingExercise = uuid.NullUUID{UUID: tp.ID, Valid: true}
		if err := repos.Options.Update(ctx, locked); err != nil {
			return fmt.Errorf("failed to update option: %w", err)
		}
		option = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("option exercise requested",
		zap.String("option_id", option.ID.String()),
		zap.String("tracked_payment_id", tp.ID.String()),
		zap.String("total", option.TotalPrice().String()),
	)

	payment, err := s.Bank.ExecuteSystemPayment(ctx, settlement.SystemPaymentInput{
		ClientID:              userID,
		SenderAccountNumber:   senderAccount,
		ReceiverAccountNumber: receiverAccount,
		Amount:                option.TotalPrice(),
		PaymentCode:           exercisePaymentCode,
		PurposeOfPayment:      exercisePurpose,
		CallbackID:            tp.ID,
	})
	if err != nil {
		// A recorded failure reaches HandleFailure through its outcome. Otherwise nothing was
		// persisted and no outcome will arrive.
		if payment == nil {
			if releaseErr := s.releaseExercise(ctx, option.ID, tp.ID); releaseErr != nil {
				err = errors.Join(err, releaseErr)
			}
		}
		return tp, fmt.Errorf("exercise payment for option %s: %w", option.ID, err)
	}

	return tp, nil
}

// HandleExerciseSuccessfulPayment transfers the shares of a paid option.
// The option row lock and used flag make a duplicate delivery fail with ErrAlreadyExercised
// without moving shares twice. When the seller no longer holds the shares the buyer is
// refunded and the option can be exercised again. An outcome for a tracked payment that is
// no longer the exercise in flight, such as one already refunded, changes nothing.
func (s *OtcService) HandleExerciseSuccessfulPayment(ctx context.Context, trackedPaymentID uuid.UUID) error {
	var option *domain.OtcOption
	stale := false
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		tp, err := loadExercise(ctx, repos, trackedPaymentID)
		if err != nil {
			return err
		}

		option, err = loadOption(ctx, repos.Options.GetForUpdate, tp.TrackedEntityID)
		if err != nil {
			return err
		}
		if option.Used {
			return domain.ErrAlreadyExercised
		}
		if !option.IsPendingExercise(tp.ID) {
			stale = true
			return nil
		}

		err = portfolio.TransferStockOwnership(ctx, repos, portfolio.TransferInput{
			SellerID: option.SellerID,
			BuyerID:  option.BuyerID,
			StockID:  option.StockID,
			Amount:   option.Amount,
			Price:    option.StrikePrice,
		})
		if err != nil {
			return err
		}

		offer, err := loadOffer(ctx, repos, option.OfferID)
		if err != nil {
			return err
		}
		offer.Status = domain.OtcOfferStatusExercised
		offer.LastModified = s.Now()
		if err := repos.Offers.Update(ctx, offer); err != nil {
			return fmt.Errorf("failed to update offer: %w", err)
		}

		option.Used = true
		option.PendingExercise = uuid.NullUUID{}
		if err := repos.Options.Update(ctx, option); err != nil {
			return fmt.Errorf("failed to update option: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientShares) || errors.Is(err, domain.ErrPortfolioEntryNotFound) {
			return s.refundExercise(ctx, option, trackedPaymentID, err)
		}
		return err
	}
	if stale {
		s.Logger.Warn("payment outcome for an exercise no longer in flight, acknowledged",
			zap.String("option_id", option.ID.String()),
			zap.String("tracked_payment_id", trackedPaymentID.String()),
		)
		return nil
	}

	s.Logger.Info("option exercised",
		zap.String("option_id", option.ID.String()),
		zap.Int64("buyer_id", option.BuyerID),
		zap.Int64("seller_id", option.SellerID),
		zap.Int64("amount", option.Amount),
	)
	return nil
}

// refundExercise pays the strike total back to the buyer and clears the exercise in flight,
// both in one unit of work. A redelivery after the refund finds no exercise in flight and
// refunds nothing.
func (s *OtcService) refundExercise(ctx context.Context, option *domain.OtcOption, trackedPaymentID uuid.UUID, cause error) error {
	buyerAccount, err := s.Bank.AccountNumberForClient(ctx, option.BuyerID)
	if err != nil {
		return fmt.Errorf("failed to resolve buyer account: %w", err)
	}
	sellerAccount, err := s.Bank.AccountNumberForClient(ctx, option.SellerID)
	if err != nil {
		return fmt.Errorf("failed to resolve seller account: %w", err)
	}

	var refund *domain.Payment
	err = s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		locked, err := loadOption(ctx, repos.Options.GetForUpdate, option.ID)
		if err != nil {
			return err
		}
		if locked.Used || !locked.IsPendingExercise(trackedPaymentID) {
			return nil
		}

		refund, err = s.Bank.ExecuteSystemPaymentWithin(ctx, repos, settlement.SystemPaymentInput{
			ClientID:              locked.SellerID,
			SenderAccountNumber:   sellerAccount,
			ReceiverAccountNumber: buyerAccount,
			Amount:                locked.TotalPrice(),
			PaymentCode:           exercisePaymentCode,
			PurposeOfPayment:      refundPurpose,
		})
		if err != nil {
			return err
		}

		locked.PendingExercise = uuid.NullUUID{}
		if err := repos.Options.Update(ctx, locked); err != nil {
			return fmt.Errorf("failed to update option: %w", err)
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("option exercise refund failed",
			zap.String("option_id", option.ID.String()),
			zap.String("tracked_payment_id", trackedPaymentID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return fmt.Errorf("refund exercise of option %s: %w", option.ID, err)
	}
	if refund == nil {
		return nil
	}

	s.Logger.Warn("option exercise refunded, seller could not deliver the shares",
		zap.String("option_id", option.ID.String()),
		zap.String("tracked_payment_id", trackedPaymentID.String()),
		zap.String("refund_payment_id", refund.ID.String()),
		zap.Error(cause),
	)
	return nil
}

// releaseExercise clears the exercise in flight if it is still the given tracked payment
func (s *OtcService) releaseExercise(ctx context.Context, optionID, trackedPaymentID uuid.UUID) error {
	return s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		option, err := loadOption(ctx, repos.Options.GetForUpdate, optionID)
		if err != nil {
			return err
		}
		if !option.IsPendingExercise(trackedPaymentID) {
			return nil
		}
		option.PendingExercise = uuid.NullUUID{}
		if err := repos.Options.Update(ctx, option); err != nil {
			return fmt.Errorf("failed to update option: %w", err)
		}
		return nil
	})
}

// HandleSuccess implements tracking.Handler
func (s *OtcService) HandleSuccess(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error {
	return s.HandleExerciseSuccessfulPayment(ctx, tp.ID)
}

// HandleFailure implements tracking.Handler. No funds moved, so the option is released
// and can be exercised again.
func (s *OtcService) HandleFailure(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error {
	if err := s.releaseExercise(ctx, tp.TrackedEntityID, tp.ID); err != nil {
		return err
	}

	s.Logger.Warn("option exercise payment failed",
		zap.String("option_id", tp.TrackedEntityID.String()),
		zap.String("payment_id", outcome.PaymentID.String()),
		zap.String("reason", outcome.Reason),
	)
	return nil
}

// CreateOffer opens a negotiation on shares the seller has made public
func (s *OtcService) CreateOffer(ctx context.Context, input CreateOfferInput) (*domain.OtcOffer, error) {
	offer := &domain.OtcOffer{
		ID:               uuid.New(),
		StockID:          input.StockID,
		BuyerID:          input.BuyerID,
		SellerID:         input.SellerID,
		Status:           domain.OtcOfferStatusPending,
		LastModified:     s.Now(),
		LastModifiedByID: input.BuyerID,
	}
	applyTerms(offer, input.Terms)
	if err := offer.Validate(); err != nil {
		return nil, err
	}

	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if err := ensurePublicShares(ctx, repos, offer); err != nil {
			return err
		}
		if err := repos.Offers.Create(ctx, offer); err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// AcceptOffer closes the negotiation and grants the buyer an option on the agreed terms
func (s *OtcService) AcceptOffer(ctx context.Context, offerID uuid.UUID, userID int64) (*domain.OtcOption, error) {
	var option *domain.OtcOption
	err := s.respond(ctx, offerID, userID, func(ctx context.Context, repos domain.Repositories, offer *domain.OtcOffer) error {
		offer.Status = domain.OtcOfferStatusAccepted
		option = &domain.OtcOption{
			ID:             uuid.New(),
			OfferID:        offer.ID,
			StockID:        offer.StockID,
			BuyerID:        offer.BuyerID,
			SellerID:       offer.SellerID,
			Amount:         offer.Amount,
			StrikePrice:    offer.PricePerStock,
			Premium:        offer.Premium,
			SettlementDate: offer.SettlementDate,
		}
		if err := repos.Options.Create(ctx, option); err != nil {
			return fmt.Errorf("failed to create option: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return option, nil
}

// RejectOffer ends the negotiation without an option
func (s *OtcService) RejectOffer(ctx context.Context, offerID uuid.UUID, userID int64) error {
	return s.respond(ctx, offerID, userID, func(ctx context.Context, repos domain.Repositories, offer *domain.OtcOffer) error {
		offer.Status = domain.OtcOfferStatusRejected
		return nil
	})
}

// UpdateOffer counters with new terms and hands the turn to the other participant
func (s *OtcService) UpdateOffer(ctx context.Context, offerID uuid.UUID, userID int64, terms OfferTerms) (*domain.OtcOffer, error) {
	var updated *domain.OtcOffer
	err := s.respond(ctx, offerID, userID, func(ctx context.Context, repos domain.Repositories, offer *domain.OtcOffer) error {
		applyTerms(offer, terms)
		offer.Status = domain.OtcOfferStatusPending
		if err := offer.Validate(); err != nil {
			return err
		}
		if err := ensurePublicShares(ctx, repos, offer); err != nil {
			return err
		}
		updated = offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelOffer withdraws a pending offer. Only the participant who made the last move may cancel.
func (s *OtcService) CancelOffer(ctx context.Context, offerID uuid.UUID, userID int64) error {
	return s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		offer, err := loadOffer(ctx, repos, offerID)
		if err != nil {
			return err
		}
		if offer.LastModifiedByID != userID || offer.Status != domain.OtcOfferStatusPending {
			return domain.ErrNotAllowedToModifyOffer
		}

		offer.Status = domain.OtcOfferStatusCancelled
		offer.LastModified = s.Now()
		if err := repos.Offers.Update(ctx, offer); err != nil {
			return fmt.Errorf("failed to update offer: %w", err)
		}
		return nil
	})
}

// ListActiveOffers returns the user's pending offers, most recently modified first
func (s *OtcService) ListActiveOffers(ctx context.Context, userID int64) ([]OfferView, error) {
	var offers []*domain.OtcOffer
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		offers, err = repos.Offers.ListByParticipant(ctx, userID, domain.OtcOfferStatusPending)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]OfferView, 0, len(offers))
	for _, offer := range offers {
		views = append(views, OfferView{
			Offer:       offer,
			CanInteract: offer.CanRespond(userID),
			Name:        ResolveName(ctx, s.Resolvers, offer.Counterparty(userID)),
		})
	}
	return views, nil
}

// ListOptions returns the options held by a buyer.
// valid filters on whether the option can still be exercised; nil returns all.
func (s *OtcService) ListOptions(ctx context.Context, userID int64, valid *bool) ([]*domain.OtcOption, error) {
	var options []*domain.OtcOption
	err := s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		options, err = repos.Options.ListByBuyer(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if valid == nil {
		return options, nil
	}

	now := s.Now()
	filtered := make([]*domain.OtcOption, 0, len(options))
	for _, option := range options {
		exercisable := !option.Used && !option.IsExpired(now)
		if exercisable == *valid {
			filtered = append(filtered, option)
		}
	}
	return filtered, nil
}

// respond applies a counterparty move to a pending offer
func (s *OtcService) respond(ctx context.Context, offerID uuid.UUID, userID int64, fn func(ctx context.Context, repos domain.Repositories, offer *domain.OtcOffer) error) error {
	return s.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		offer, err := loadOffer(ctx, repos, offerID)
		if err != nil {
			return err
		}
		if !offer.CanRespond(userID) || offer.Status != domain.OtcOfferStatusPending {
			return domain.ErrNotAllowedToModifyOffer
		}

		if err := fn(ctx, repos, offer); err != nil {
			return err
		}

		offer.LastModified = s.Now()
		offer.LastModifiedByID = userID
		if err := repos.Offers.Update(ctx, offer); err != nil {
			return fmt.Errorf("failed to update offer: %w", err)
		}
		return nil
	})
}

func (s *OtcService) ensureExercisable(option *domain.OtcOption, userID int64) error {
	if option.BuyerID != userID {
		return fmt.Errorf("option %s belongs to another buyer: %w", option.ID, domain.ErrUnauthorizedAccess)
	}
	if option.Used {
		return domain.ErrAlreadyExercised
	}
	if option.PendingExercise.Valid {
		return fmt.Errorf("option %s: %w", option.ID, domain.ErrExerciseInProgress)
	}
	if option.IsExpired(s.Now()) {
		return domain.ErrOptionExpired
	}
	return nil
}

func ensurePublicShares(ctx context.Context, repos domain.Repositories, offer *domain.OtcOffer) error {
	entry, err := repos.Portfolio.Get(ctx, offer.SellerID, offer.StockID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.ErrPortfolioEntryNotFound
		}
		return fmt.Errorf("failed to load seller holding: %w", err)
	}
	if offer.Amount > entry.PublicAmount {
		return domain.ErrInvalidPublicAmount
	}
	return nil
}

func applyTerms(offer *domain.OtcOffer, terms OfferTerms) {
	offer.Amount = terms.Amount
	offer.PricePerStock = terms.PricePerStock
	offer.Premium = terms.Premium
	offer.SettlementDate = terms.SettlementDate
}

func loadOption(ctx context.Context, get func(context.Context, uuid.UUID) (*domain.OtcOption, error), id uuid.UUID) (*domain.OtcOption, error) {
	option, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("option %s: %w", id, domain.ErrOptionNotFound)
		}
		return nil, fmt.Errorf("failed to load option: %w", err)
	}
	return option, nil
}

func loadExercise(ctx context.Context, repos domain.Repositories, id uuid.UUID) (*domain.TrackedPayment, error) {
	tp, err := tracking.Load(ctx, repos, id)
	if err != nil {
		return nil, err
	}
	if tp.Type != domain.TrackedPaymentTypeOtcExercise {
		return nil, fmt.Errorf("tracked payment %s has type %s, not %s", tp.ID, tp.Type, domain.TrackedPaymentTypeOtcExercise)
	}
	return tp, nil
}

func loadOffer(ctx context.Context, repos domain.Repositories, id uuid.UUID) (*domain.OtcOffer, error) {
	offer, err := repos.Offers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("offer %s: %w", id, domain.ErrOfferNotFound)
		}
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}
	return offer, nil
}

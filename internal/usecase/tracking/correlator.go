package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/metrics"
	"go.uber.org/zap"
)

// Handler resumes the business flow waiting on a tracked payment
type Handler interface {
	// HandleSuccess runs once the payment settled. Returning domain.ErrAlreadyExercised
	// marks a duplicate delivery.
	HandleSuccess(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error

	// HandleFailure runs when the payment could not be executed
	HandleFailure(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error
}

// Correlator maps payment outcomes back to the business entity that requested the payment
type Correlator struct {
	UnitOfWork domain.UnitOfWork
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	mu       sync.RWMutex
	handlers map[domain.TrackedPaymentType]Handler
}

// NewCorrelator creates a new Correlator instance
func NewCorrelator(uow domain.UnitOfWork, logger *zap.Logger, m *metrics.Metrics) *Correlator {
	return &Correlator{
		UnitOfWork: uow,
		Logger:     logger,
		Metrics:    m,
		handlers:   make(map[domain.TrackedPaymentType]Handler),
	}
}

// Register binds the handler for a tracked payment type, replacing any previous one
func (c *Correlator) Register(trackedType domain.TrackedPaymentType, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[trackedType] = handler
}

// Track creates a tracked payment inside the caller's unit of work
func Track(ctx context.Context, repos domain.Repositories, entityID uuid.UUID, trackedType domain.TrackedPaymentType, at time.Time) (*domain.TrackedPayment, error) {
	tp := &domain.TrackedPayment{
		ID:              uuid.New(),
		TrackedEntityID: entityID,
		Type:            trackedType,
		CreatedAt:       at,
	}
	if err := repos.TrackedPayments.Create(ctx, tp); err != nil {
		return nil, fmt.Errorf("failed to create tracked payment: %w", err)
	}
	return tp, nil
}

// Load retrieves a tracked payment inside the caller's unit of work
func Load(ctx context.Context, repos domain.Repositories, id uuid.UUID) (*domain.TrackedPayment, error) {
	tp, err := repos.TrackedPayments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("tracked payment %s: %w", id, domain.ErrTrackedPaymentNotFound)
		}
		return nil, fmt.Errorf("failed to load tracked payment: %w", err)
	}
	return tp, nil
}

// Get retrieves a tracked payment by its ID
func (c *Correlator) Get(ctx context.Context, id uuid.UUID) (*domain.TrackedPayment, error) {
	var tp *domain.TrackedPayment
	err := c.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		tp, err = Load(ctx, repos, id)
		return err
	})
	return tp, err
}

// Publish implements domain.OutcomePublisher.
// Outcomes without a callback id are not tracked and are ignored.
// A nil return acknowledges the outcome; an error asks the caller to redeliver it.
func (c *Correlator) Publish(ctx context.Context, outcome domain.PaymentOutcome) error {
	if outcome.CallbackID == nil {
		return nil
	}

	tp, err := c.Get(ctx, *outcome.CallbackID)
	if err != nil {
		if errors.Is(err, domain.ErrTrackedPaymentNotFound) {
			c.Logger.Warn("outcome for unknown tracked payment",
				zap.String("payment_id", outcome.PaymentID.String()),
				zap.String("callback_id", outcome.CallbackID.String()),
			)
			c.observe("UNKNOWN", "unknown")
			return nil
		}
		return err
	}

	return c.Dispatch(ctx, tp, outcome)
}

// Dispatch routes an outcome to the handler registered for the tracked payment's type
func (c *Correlator) Dispatch(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error {
	c.mu.RLock()
	handler, ok := c.handlers[tp.Type]
	c.mu.RUnlock()
	if !ok {
		c.observe(string(tp.Type), "unhandled")
		return fmt.Errorf("no handler registered for tracked payment type %s", tp.Type)
	}

	fields := []zap.Field{
		zap.String("tracked_payment_id", tp.ID.String()),
		zap.String("type", string(tp.Type)),
		zap.String("payment_id", outcome.PaymentID.String()),
		zap.String("status", string(outcome.Status)),
	}

	var err error
	if outcome.Succeeded() {
		err = handler.HandleSuccess(ctx, tp, outcome)
	} else {
		err = handler.HandleFailure(ctx, tp, outcome)
	}

	switch {
	case err == nil:
		c.observe(string(tp.Type), "handled")
		c.Logger.Info("tracked payment handled", fields...)
		return nil
	case errors.Is(err, domain.ErrAlreadyExercised):
		c.observe(string(tp.Type), "duplicate")
		c.Logger.Info("duplicate tracked payment outcome acknowledged", fields...)
		return nil
	default:
		c.observe(string(tp.Type), "error")
		c.Logger.Error("tracked payment handler failed", append(fields, zap.Error(err))...)
		return err
	}
}

func (c *Correlator) observe(trackedType, result string) {
	c.Metrics.CallbackDispatches.WithLabelValues(trackedType, result).Inc()
}

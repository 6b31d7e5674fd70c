package worker

import (
	"context"
	"time"

	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/metrics"
	"go.uber.org/zap"
)

// RelayConfig tunes outbox polling and retry
type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	MaxAttempts int
	Backoff     time.Duration // Delay added per failed attempt
}

// DefaultRelayConfig returns the settings used when none are configured
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:    5 * time.Second,
		BatchSize:   50,
		Lease:       time.Minute,
		MaxAttempts: 5,
		Backoff:     10 * time.Second,
	}
}

// Relay delivers outbox events to a publisher.
// Delivery is at least once: an event is marked delivered only after Publish returns nil.
// A publish error carrying a business error kind is final and the event is marked failed at once.
type Relay struct {
	UnitOfWork domain.UnitOfWork
	Publisher  domain.OutcomePublisher
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Config     RelayConfig
	Now        func() time.Time
}

// NewRelay creates a new Relay instance
func NewRelay(uow domain.UnitOfWork, publisher domain.OutcomePublisher, logger *zap.Logger, m *metrics.Metrics, cfg RelayConfig) *Relay {
	return &Relay{
		UnitOfWork: uow,
		Publisher:  publisher,
		Logger:     logger,
		Metrics:    m,
		Config:     cfg,
		Now:        time.Now,
	}
}

// Run polls the outbox until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	r.Logger.Info("outbox relay started", zap.Duration("interval", r.Config.Interval))
	ticker := time.NewTicker(r.Config.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			r.Logger.Error("outbox batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.Logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims due events and attempts each once. It returns the number delivered.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	var events []*domain.OutboxEvent
	err := r.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		events, err = repos.Outbox.ClaimDue(ctx, r.Now(), r.Config.BatchSize, r.Config.Lease)
		return err
	})
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		ok, err := r.deliver(ctx, event)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

func (r *Relay) deliver(ctx context.Context, event *domain.OutboxEvent) (bool, error) {
	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("payment_id", event.PaymentID.String()),
		zap.String("status", string(event.Payload.Status)),
	}

	pubErr := r.Publisher.Publish(ctx, event.Payload)
	if pubErr == nil {
		err := r.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
			return repos.Outbox.MarkDelivered(ctx, event.ID)
		})
		if err != nil {
			return false, err
		}
		r.Metrics.OutboxDeliveries.WithLabelValues("delivered").Inc()
		r.Logger.Debug("outbox event delivered", fields...)
		return true, nil
	}

	attempts := event.Attempts + 1
	fields = append(fields, zap.Int("attempts", attempts), zap.Error(pubErr))

	retryable := domain.Retryable(pubErr)
	if attempts >= r.Config.MaxAttempts || !retryable {
		err := r.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
			return repos.Outbox.MarkFailed(ctx, event.ID, attempts, pubErr.Error())
		})
		if err != nil {
			return false, err
		}
		r.Metrics.OutboxDeliveries.WithLabelValues("failed").Inc()
		if !retryable {
			r.Logger.Error("outbox event rejected, not retrying", append(fields, zap.String("code", domain.Code(pubErr)))...)
		} else {
			r.Logger.Error("outbox event failed, max attempts reached", fields...)
		}
		return false, nil
	}

	nextRunAt := r.Now().Add(time.Duration(attempts) * r.Config.Backoff)
	err := r.UnitOfWork.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Outbox.MarkRetry(ctx, event.ID, attempts, nextRunAt, pubErr.Error())
	})
	if err != nil {
		return false, err
	}
	r.Metrics.OutboxDeliveries.WithLabelValues("retry").Inc()
	r.Logger.Warn("outbox event delivery failed, scheduled retry", append(fields, zap.Time("next_run_at", nextRunAt))...)
	return false, nil
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/simaogato/settlement-backend/internal/domain"
	"go.uber.org/zap"
)

// KafkaConfig contains configuration for the payment outcome topic
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	WriteTimeout time.Duration
	RetryDelay   time.Duration // Wait before redelivering a message the handler rejected
}

// MessageWriter is the subset of *kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutcomeProducer implements domain.OutcomePublisher by writing outcomes to a topic.
// Messages are keyed by payment id so every outcome of a payment lands on one partition.
type OutcomeProducer struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewOutcomeProducer creates a producer writing to cfg.Topic
func NewOutcomeProducer(cfg KafkaConfig, logger *zap.Logger) *OutcomeProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return NewOutcomeProducerWithWriter(writer, logger)
}

// NewOutcomeProducerWithWriter creates a producer over an existing writer
func NewOutcomeProducerWithWriter(writer MessageWriter, logger *zap.Logger) *OutcomeProducer {
	return &OutcomeProducer{writer: writer, logger: logger}
}

// Publish writes one outcome and waits for the broker acknowledgement
func (p *OutcomeProducer) Publish(ctx context.Context, outcome domain.PaymentOutcome) error {
	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(outcome.PaymentID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(outcome.Kind)},
			{Key: "status", Value: []byte(outcome.Status)},
		},
		Time: outcome.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish outcome for payment %s: %w", outcome.PaymentID, err)
	}

	p.logger.Debug("outcome published",
		zap.String("payment_id", outcome.PaymentID.String()),
		zap.String("status", string(outcome.Status)),
	)
	return nil
}

// Close flushes and closes the writer
func (p *OutcomeProducer) Close() error {
	return p.writer.Close()
}

// OutcomeConsumer reads outcomes from the topic and hands them to a publisher,
// typically the tracked payment correlator. Offsets are committed only after the
// handler accepts a message.
type OutcomeConsumer struct {
	reader     MessageReader
	handler    domain.OutcomePublisher
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewOutcomeConsumer creates a consumer group member for cfg.Topic
func NewOutcomeConsumer(cfg KafkaConfig, handler domain.OutcomePublisher, logger *zap.Logger) *OutcomeConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	})
	return NewOutcomeConsumerWithReader(reader, handler, logger, cfg.RetryDelay)
}

// NewOutcomeConsumerWithReader creates a consumer over an existing reader
func NewOutcomeConsumerWithReader(reader MessageReader, handler domain.OutcomePublisher, logger *zap.Logger, retryDelay time.Duration) *OutcomeConsumer {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &OutcomeConsumer{
		reader:     reader,
		handler:    handler,
		logger:     logger,
		retryDelay: retryDelay,
	}
}

// Run consumes until ctx is cancelled
func (c *OutcomeConsumer) Run(ctx context.Context) error {
	c.logger.Info("outcome consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Info("outcome consumer stopped")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			// Only cancellation ends handle with an error
			c.logger.Info("outcome consumer stopped")
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

// handle retries msg until the handler accepts it or ctx is cancelled.
// Undecodable messages and business rejections are logged and skipped.
func (c *OutcomeConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var outcome domain.PaymentOutcome
	if err := json.Unmarshal(msg.Value, &outcome); err != nil {
		c.logger.Error("skipping undecodable outcome message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	for {
		err := c.handler.Publish(ctx, outcome)
		if err == nil {
			return nil
		}
		if !domain.Retryable(err) {
			c.logger.Error("outcome rejected by handler, skipping",
				zap.String("payment_id", outcome.PaymentID.String()),
				zap.Int64("offset", msg.Offset),
				zap.String("code", domain.Code(err)),
				zap.Error(err),
			)
			return nil
		}

		c.logger.Warn("outcome handler failed, retrying",
			zap.String("payment_id", outcome.PaymentID.String()),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

// Close closes the reader
func (c *OutcomeConsumer) Close() error {
	return c.reader.Close()
}

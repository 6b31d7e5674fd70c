package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockWriter is a mock implementation of MessageWriter
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

// MockHandler is a mock implementation of OutcomePublisher
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Publish(ctx context.Context, outcome domain.PaymentOutcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

// fakeReader serves queued messages and records commits.
// Once the queue is empty FetchMessage blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func testOutcome() domain.PaymentOutcome {
	callbackID := uuid.New()
	return domain.PaymentOutcome{
		PaymentID:  uuid.New(),
		Kind:       domain.PaymentKindSystem,
		Status:     domain.PaymentStatusCompleted,
		CallbackID: &callbackID,
		Amount:     "1200",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func encode(t *testing.T, outcome domain.PaymentOutcome, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(outcome)
	require.NoError(t, err)
	return kafka.Message{Value: value, Offset: offset}
}

func runConsumer(t *testing.T, consumer *OutcomeConsumer, reader *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestOutcomeProducer_Publish(t *testing.T) {
	writer := new(MockWriter)
	producer := NewOutcomeProducerWithWriter(writer, zap.NewNop())
	outcome := testOutcome()

	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		var decoded domain.PaymentOutcome
		if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
			return false
		}
		return string(msgs[0].Key) == outcome.PaymentID.String() &&
			decoded.PaymentID == outcome.PaymentID &&
			*decoded.CallbackID == *outcome.CallbackID
	})).Return(nil)

	err := producer.Publish(context.Background(), outcome)

	assert.NoError(t, err)
	writer.AssertExpectations(t)
}

func TestOutcomeProducer_PublishError(t *testing.T) {
	writer := new(MockWriter)
	producer := NewOutcomeProducerWithWriter(writer, zap.NewNop())
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))

	err := producer.Publish(context.Background(), testOutcome())

	assert.ErrorContains(t, err, "leader not available")
}

func TestOutcomeConsumer_HandlesAndCommits(t *testing.T) {
	outcome := testOutcome()
	reader := newFakeReader(encode(t, outcome, 7))
	handler := new(MockHandler)
	handler.On("Publish", mock.Anything, outcome).Return(nil)

	consumer := NewOutcomeConsumerWithReader(reader, handler, zap.NewNop(), time.Millisecond)
	runConsumer(t, consumer, reader)

	handler.AssertNumberOfCalls(t, "Publish", 1)
	commits := reader.commits()
	require.Len(t, commits, 1)
	assert.Equal(t, int64(7), commits[0].Offset)
}

func TestOutcomeConsumer_RetriesUntilAccepted(t *testing.T) {
	outcome := testOutcome()
	reader := newFakeReader(encode(t, outcome, 3))
	handler := new(MockHandler)
	handler.On("Publish", mock.Anything, outcome).Return(errors.New("db unavailable")).Twice()
	handler.On("Publish", mock.Anything, outcome).Return(nil).Once()

	consumer := NewOutcomeConsumerWithReader(reader, handler, zap.NewNop(), time.Millisecond)
	runConsumer(t, consumer, reader)

	handler.AssertNumberOfCalls(t, "Publish", 3)
	assert.Len(t, reader.commits(), 1)
}

func TestOutcomeConsumer_SkipsBusinessRejection(t *testing.T) {
	outcome := testOutcome()
	reader := newFakeReader(encode(t, outcome, 4))
	handler := new(MockHandler)
	handler.On("Publish", mock.Anything, outcome).Return(domain.ErrOfferNotFound).Once()

	consumer := NewOutcomeConsumerWithReader(reader, handler, zap.NewNop(), time.Millisecond)
	runConsumer(t, consumer, reader)

	handler.AssertNumberOfCalls(t, "Publish", 1)
	assert.Len(t, reader.commits(), 1)
}

func TestOutcomeConsumer_SkipsUndecodableMessages(t *testing.T) {
	outcome := testOutcome()
	reader := newFakeReader(kafka.Message{Value: []byte("not json"), Offset: 1}, encode(t, outcome, 2))
	handler := new(MockHandler)
	handler.On("Publish", mock.Anything, outcome).Return(nil)

	consumer := NewOutcomeConsumerWithReader(reader, handler, zap.NewNop(), time.Millisecond)
	runConsumer(t, consumer, reader)

	handler.AssertNumberOfCalls(t, "Publish", 1)
	assert.Len(t, reader.commits(), 2)
}

package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/simaogato/settlement-backend/internal/adapter/repository/memory"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockHandler is a mock implementation of Handler
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) HandleSuccess(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error {
	args := m.Called(ctx, tp, outcome)
	return args.Error(0)
}

func (m *MockHandler) HandleFailure(ctx context.Context, tp *domain.TrackedPayment, outcome domain.PaymentOutcome) error {
	args := m.Called(ctx, tp, outcome)
	return args.Error(0)
}

func newCorrelator(t *testing.T) (*Correlator, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewNop()
	return NewCorrelator(store, zap.NewNop(), m), store, m
}

func track(t *testing.T, store *memory.Store, entityID uuid.UUID) *domain.TrackedPayment {
	t.Helper()
	var tp *domain.TrackedPayment
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		var err error
		tp, err = Track(ctx, repos, entityID, domain.TrackedPaymentTypeOtcExercise, time.Now())
		return err
	})
	require.NoError(t, err)
	return tp
}

func TestTrack_PersistsCorrelation(t *testing.T) {
	c, store, _ := newCorrelator(t)
	optionID := uuid.New()

	tp := track(t, store, optionID)

	got, err := c.Get(context.Background(), tp.ID)
	require.NoError(t, err)
	assert.Equal(t, optionID, got.TrackedEntityID)
	assert.Equal(t, domain.TrackedPaymentTypeOtcExercise, got.Type)
}

func TestGet_NotFound(t *testing.T) {
	c, _, _ := newCorrelator(t)

	_, err := c.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrTrackedPaymentNotFound)
}

func TestPublish_IgnoresUntrackedOutcome(t *testing.T) {
	c, _, _ := newCorrelator(t)
	handler := new(MockHandler)
	c.Register(domain.TrackedPaymentTypeOtcExercise, handler)

	err := c.Publish(context.Background(), domain.PaymentOutcome{PaymentID: uuid.New(), Status: domain.PaymentStatusCompleted})

	assert.NoError(t, err)
	handler.AssertNotCalled(t, "HandleSuccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublish_RoutesSuccessAndFailure(t *testing.T) {
	c, store, _ := newCorrelator(t)
	handler := new(MockHandler)
	c.Register(domain.TrackedPaymentTypeOtcExercise, handler)
	tp := track(t, store, uuid.New())

	success := domain.PaymentOutcome{PaymentID: uuid.New(), Status: domain.PaymentStatusCompleted, CallbackID: &tp.ID}
	failure := domain.PaymentOutcome{PaymentID: uuid.New(), Status: domain.PaymentStatusFailed, CallbackID: &tp.ID}

	handler.On("HandleSuccess", mock.Anything, mock.MatchedBy(func(got *domain.TrackedPayment) bool { return got.ID == tp.ID }), success).Return(nil).Once()
	handler.On("HandleFailure", mock.Anything, mock.MatchedBy(func(got *domain.TrackedPayment) bool { return got.ID == tp.ID }), failure).Return(nil).Once()

	require.NoError(t, c.Publish(context.Background(), success))
	require.NoError(t, c.Publish(context.Background(), failure))

	handler.AssertExpectations(t)
}

func TestPublish_AcknowledgesDuplicateDelivery(t *testing.T) {
	c, store, m := newCorrelator(t)
	handler := new(MockHandler)
	c.Register(domain.TrackedPaymentTypeOtcExercise, handler)
	tp := track(t, store, uuid.New())
	outcome := domain.PaymentOutcome{PaymentID: uuid.New(), Status: domain.PaymentStatusCompleted, CallbackID: &tp.ID}

	handler.On("HandleSuccess", mock.Anything, mock.Anything, outcome).Return(domain.ErrAlreadyExercised).Once()

	err := c.Publish(context.Background(), outcome)

	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbackDispatches.WithLabelValues("OTC_EXERCISE", "duplicate")))
}

func TestPublish_PropagatesHandlerError(t *testing.T) {
	c, store, _ := newCorrelator(t)
	handler := new(MockHandler)
	c.Register(domain.TrackedPaymentTypeOtcExercise, handler)
	tp := track(t, store, uuid.New())
	outcome := domain.PaymentOutcome{PaymentID: uuid.New(), Status: domain.PaymentStatusCompleted, CallbackID: &tp.ID}

	boom := errors.New("portfolio unavailable")
	handler.On("HandleSuccess", mock.Anything, mock.Anything, outcome).Return(boom).Once()

	err := c.Publish(context.Background(), outcome)

	assert.ErrorIs(t, err, boom)
}

func TestPublish_UnknownCallbackIsAcknowledged(t *testing.T) {
	c, _, m := newCorrelator(t)
	callbackID := uuid.New()

	err := c.Publish(context.Background(), domain.PaymentOutcome{PaymentID: uuid.New(), Status: domain.PaymentStatusCompleted, CallbackID: &callbackID})

	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbackDispatches.WithLabelValues("UNKNOWN", "unknown")))
}

func TestDispatch_MissingHandler(t *testing.T) {
	c, store, _ := newCorrelator(t)
	tp := track(t, store, uuid.New())

	err := c.Dispatch(context.Background(), tp, domain.PaymentOutcome{Status: domain.PaymentStatusCompleted, CallbackID: &tp.ID})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptor(t *testing.T) {
	validToken := "test-token-123"
	interceptor := AuthInterceptor(validToken)

	tests := []struct {
		name           string
		ctx            context.Context
		method         string
		handlerCalled  bool
		expectedCode   codes.Code
		expectedErrMsg string
	}{
		{
			name: "Valid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", validToken),
			),
			handlerCalled: true,
			expectedCode:  codes.OK,
		},
		{
			name: "Valid Bearer Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "Bearer "+validToken),
			),
			handlerCalled: true,
			expectedCode:  codes.OK,
		},
		{
			name: "Invalid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "wrong-token"),
			),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "invalid token",
		},
		{
			name:           "Missing Token",
			ctx:            context.Background(),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing metadata",
		},
		{
			name: "Missing Authorization Header",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("other-header", "value"),
			),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing authorization header",
		},
		{
			name:          "Health Check Without Token",
			ctx:           context.Background(),
			method:        "/grpc.health.v1.Health/Check",
			handlerCalled: true,
			expectedCode:  codes.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				handlerCalled = true
				return "success", nil
			}

			method := tt.method
			if method == "" {
				method = "/settlement.v1.SettlementService/GetPayment"
			}
			info := &grpc.UnaryServerInfo{FullMethod: method}

			resp, err := interceptor(tt.ctx, "test-request", info, handler)

			assert.Equal(t, tt.handlerCalled, handlerCalled, "handler called status mismatch")

			if tt.expectedCode == codes.OK {
				assert.NoError(t, err)
				assert.Equal(t, "success", resp)
			} else {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok, "error should be a gRPC status")
				assert.Equal(t, tt.expectedCode, st.Code())
				assert.Contains(t, st.Message(), tt.expectedErrMsg)
			}
		})
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	interceptor := LoggingInterceptor(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: "/settlement.v1.SettlementService/ConfirmTransfer"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "insufficient funds")
	})
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "FailedPrecondition", entries[0].ContextMap()["code"])
	assert.Equal(t, info.FullMethod, entries[0].ContextMap()["method"])
}

// memoryIdempotencyStore is an in-process IdempotencyStore; ttl is ignored
type memoryIdempotencyStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	failing bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: make(map[string][]byte)}
}

func (s *memoryIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errors.New("connection refused")
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = []byte(pendingMarker)
	return true, nil
}

func (s *memoryIdempotencyStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memoryIdempotencyStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func idempotentCtx(key string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(IdempotencyHeader, key))
}

func TestIdempotencyInterceptor_ReplaysStoredResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	interceptor := IdempotencyInterceptor(store, time.Hour, zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/settlement.v1.SettlementService/InitiateTransfer"}

	calls := 0
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		calls++
		return &PaymentResponse{ID: "p-1", Status: "PENDING_CONFIRMATION"}, nil
	}

	first, err := interceptor(idempotentCtx("k1"), nil, info, handler)
	require.NoError(t, err)
	second, err := interceptor(idempotentCtx("k1"), nil, info, handler)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	raw, ok := second.(json.RawMessage)
	require.True(t, ok)
	var replayed PaymentResponse
	require.NoError(t, json.Unmarshal(raw, &replayed))
	assert.Equal(t, *first.(*PaymentResponse), replayed)
}

func TestIdempotencyInterceptor_KeysAreScopedPerMethod(t *testing.T) {
	store := newMemoryIdempotencyStore()
	interceptor := IdempotencyInterceptor(store, time.Hour, zap.NewNop())

	calls := 0
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		calls++
		return &Empty{}, nil
	}

	_, err := interceptor(idempotentCtx("k1"), nil, &grpc.UnaryServerInfo{FullMethod: "/s/A"}, handler)
	require.NoError(t, err)
	_, err = interceptor(idempotentCtx("k1"), nil, &grpc.UnaryServerInfo{FullMethod: "/s/B"}, handler)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestIdempotencyInterceptor_InFlightDuplicateIsAborted(t *testing.T) {
	store := newMemoryIdempotencyStore()
	interceptor := IdempotencyInterceptor(store, time.Hour, zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/s/A"}
	_, err := store.Reserve(context.Background(), idempotencyKey(context.Background(), nil, info.FullMethod, "k1"), time.Hour)
	require.NoError(t, err)

	_, err = interceptor(idempotentCtx("k1"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler must not run for an in-flight key")
		return nil, nil
	})

	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestIdempotencyInterceptor_FailureReleasesKey(t *testing.T) {
	store := newMemoryIdempotencyStore()
	interceptor := IdempotencyInterceptor(store, time.Hour, zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/s/A"}

	_, err := interceptor(idempotentCtx("k1"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "insufficient funds")
	})
	require.Error(t, err)

	calls := 0
	_, err = interceptor(idempotentCtx("k1"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		calls++
		return &Empty{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyInterceptor_PassThrough(t *testing.T) {
	store := newMemoryIdempotencyStore()
	interceptor := IdempotencyInterceptor(store, time.Hour, zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/s/A"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	t.Run("No Key", func(t *testing.T) {
		resp, err := interceptor(context.Background(), nil, info, handler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
		assert.Empty(t, store.values)
	})

	t.Run("Store Unavailable", func(t *testing.T) {
		store.failing = true
		defer func() { store.failing = false }()

		resp, err := interceptor(idempotentCtx("k1"), nil, info, handler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})
}

func TestAuthInterceptor_StoresCallerFingerprint(t *testing.T) {
	interceptor := AuthInterceptor("test-token-123")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer test-token-123"))

	var caller string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/s/A"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		var ok bool
		caller, ok = CallerFromContext(ctx)
		require.True(t, ok)
		return &Empty{}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, tokenFingerprint("test-token-123"), caller)
	assert.Len(t, caller, 16)
	assert.NotContains(t, caller, "test-token")
}

func TestIdempotencyInterceptor_KeysAreScopedPerCaller(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/settlement.v1.SettlementService/InitiateTransfer"}
	withCaller := func(token string) context.Context {
		return context.WithValue(idempotentCtx("k1"), callerKey{}, tokenFingerprint(token))
	}

	tests := []struct {
		name         string
		firstCtx     context.Context
		firstReq     interface{}
		secondCtx    context.Context
		secondReq    interface{}
		expectedRuns int
	}{
		{
			name:         "Different Tokens",
			firstCtx:     withCaller("token-a"),
			firstReq:     &InitiateTransferRequest{ClientID: 1},
			secondCtx:    withCaller("token-b"),
			secondReq:    &InitiateTransferRequest{ClientID: 1},
			expectedRuns: 2,
		},
		{
			name:         "Different Clients",
			firstCtx:     withCaller("token-a"),
			firstReq:     &InitiateTransferRequest{ClientID: 1},
			secondCtx:    withCaller("token-a"),
			secondReq:    &InitiateTransferRequest{ClientID: 2},
			expectedRuns: 2,
		},
		{
			name:         "Same Caller And Client",
			firstCtx:     withCaller("token-a"),
			firstReq:     &InitiateTransferRequest{ClientID: 1},
			secondCtx:    withCaller("token-a"),
			secondReq:    &InitiateTransferRequest{ClientID: 1},
			expectedRuns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := IdempotencyInterceptor(newMemoryIdempotencyStore(), time.Hour, zap.NewNop())
			runs := 0
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				runs++
				return &PaymentResponse{ID: "p-1"}, nil
			}

			_, err := interceptor(tt.firstCtx, tt.firstReq, info, handler)
			require.NoError(t, err)
			_, err = interceptor(tt.secondCtx, tt.secondReq, info, handler)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedRuns, runs)
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	ctx := context.WithValue(context.Background(), callerKey{}, "abcd")

	assert.Equal(t, "anonymous:/s/A:k1", idempotencyKey(context.Background(), nil, "/s/A", "k1"))
	assert.Equal(t, "abcd:/s/A:k1", idempotencyKey(ctx, &Empty{}, "/s/A", "k1"))
	assert.Equal(t, "abcd/7:/s/A:k1", idempotencyKey(ctx, &ExerciseOptionRequest{UserID: 7}, "/s/A", "k1"))
}

package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// IdempotencyHeader is the metadata key clients set to make a call replayable
const IdempotencyHeader = "idempotency-key"

const pendingMarker = "__pending__"

// actor is implemented by requests made on behalf of one client or user
type actor interface {
	ActorID() int64
}

// idempotencyKey scopes a client supplied key to the authenticated caller, the acting
// user and the method, so equal keys from different callers never share a response
func idempotencyKey(ctx context.Context, req interface{}, method, key string) string {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		caller = "anonymous"
	}
	if a, ok := req.(actor); ok {
		caller += "/" + strconv.FormatInt(a.ActorID(), 10)
	}
	return caller + ":" + method + ":" + key
}

// IdempotencyStore keeps responses of completed calls keyed by idempotency key
type IdempotencyStore interface {
	// Reserve claims key for an in-flight call. It reports false if the key is already taken.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Load returns the stored value, or found=false if the key is unknown
	Load(ctx context.Context, key string) (value []byte, found bool, err error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore is an IdempotencyStore backed by Redis
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisIdempotencyStore creates a new RedisIdempotencyStore instance
func NewRedisIdempotencyStore(client redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "idempotency:"}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load idempotency key: %w", err)
	}
	return value, true, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// IdempotencyInterceptor replays the stored response when a call repeats an idempotency key.
// It must run after AuthInterceptor so keys are scoped to the caller.
// A repeat that arrives while the first call is still running gets codes.Aborted.
// Failed calls release their key so the client can retry.
// Store outages degrade to executing the call without replay protection.
func IdempotencyInterceptor(store IdempotencyStore, ttl time.Duration, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		keys := md.Get(IdempotencyHeader)
		if len(keys) == 0 || keys[0] == "" {
			return handler(ctx, req)
		}
		key := idempotencyKey(ctx, req, info.FullMethod, keys[0])

		reserved, err := store.Reserve(ctx, key, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable", zap.String("method", info.FullMethod), zap.Error(err))
			return handler(ctx, req)
		}

		if !reserved {
			value, found, err := store.Load(ctx, key)
			if err != nil {
				return nil, status.Error(codes.Unavailable, "idempotency store unavailable")
			}
			if !found || string(value) == pendingMarker {
				return nil, status.Error(codes.Aborted, "a request with this idempotency key is in progress")
			}
			return json.RawMessage(value), nil
		}

		resp, err := handler(ctx, req)
		if err != nil {
			if releaseErr := store.Release(ctx, key); releaseErr != nil {
				logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(releaseErr))
			}
			return nil, err
		}

		value, marshalErr := json.Marshal(resp)
		if marshalErr == nil {
			marshalErr = store.Save(ctx, key, value, ttl)
		}
		if marshalErr != nil {
			logger.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(marshalErr))
		}
		return resp, nil
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	appmatching "github.com/storelink/backend/internal/application/matching"
	"github.com/storelink/backend/internal/infrastructure/config"
)

const (
	runLockKey = "matching:run:lock"
	cursorKey  = "matching:run:cursor"
)

// RedisRunStateStore persists reconciliation run state in Redis, so the run
// lock excludes every instance of the service and the resume cursor survives
// restarts.
type RedisRunStateStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunStateStore creates a Redis-backed run state store
func NewRedisRunStateStore(cfg config.RedisConfig) (*RedisRunStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRunStateStore{client: client, keyPrefix: "storelink:"}, nil
}

// NewRedisRunStateStoreWithClient creates a store with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisRunStateStoreWithClient(client *redis.Client, keyPrefix string) *RedisRunStateStore {
	if keyPrefix == "" {
		keyPrefix = "storelink:"
	}
	return &RedisRunStateStore{client: client, keyPrefix: keyPrefix}
}

// AcquireLock takes the run lock via SETNX. The TTL bounds how long a crashed
// holder can block subsequent runs.
func (s *RedisRunStateStore) AcquireLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+runLockKey, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock frees the run lock
func (s *RedisRunStateStore) ReleaseLock(ctx context.Context) error {
	if err := s.client.Del(ctx, s.keyPrefix+runLockKey).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// LoadCursor returns the persisted resume cursor, empty if none
func (s *RedisRunStateStore) LoadCursor(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.keyPrefix+cursorKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}
	return token, nil
}

// SaveCursor persists the resume cursor. No TTL: a stale cursor is harmless,
// resuming past mapped orders only skips benign work.
func (s *RedisRunStateStore) SaveCursor(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.keyPrefix+cursorKey, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// ClearCursor removes the resume cursor
func (s *RedisRunStateStore) ClearCursor(ctx context.Context) error {
	if err := s.client.Del(ctx, s.keyPrefix+cursorKey).Err(); err != nil {
		return fmt.Errorf("failed to clear cursor: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity
func (s *RedisRunStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisRunStateStore) Close() error {
	return s.client.Close()
}

// Ensure RedisRunStateStore implements the reconciler's state contract
var _ appmatching.RunStateStore = (*RedisRunStateStore)(nil)

// Package storage provides the Redis-backed SessionStore used when the
// service runs with SESSION_BACKEND=redis. Sessions carry a TTL so
// Redis expires idle entries on its own.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/microcom/cyberquest/pkg/game"
)

const sessionKeyPrefix = "session:"

// RedisStore implements game.SessionStore on top of Redis. Per-user
// serialization is the engine's job; the store only guarantees atomic
// individual operations.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStore implements the SessionStore interface
var _ game.SessionStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis session store. Sessions expire after
// ttl of inactivity; every Save refreshes the clock.
func NewRedisStore(redisURL string, ttl time.Duration, logger *slog.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisStore{
		client: rdb,
		logger: logger,
		ttl:    ttl,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// GetOrCreate returns the user's session, creating one awaiting its
// first start action if absent. SETNX keeps two concurrent creates for
// the same user from both winning.
func (r *RedisStore) GetOrCreate(ctx context.Context, userID string) (*game.Session, error) {
	s, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	s = game.NewSession(userID)
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKeyPrefix + userID
	created, err := r.client.SetNX(ctx, key, string(data), r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to create session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if !created {
		// Lost the race; the concurrent creator's session wins.
		return r.Get(ctx, userID)
	}
	return s, nil
}

// Get returns the user's session, or nil if absent.
func (r *RedisStore) Get(ctx context.Context, userID string) (*game.Session, error) {
	key := sessionKeyPrefix + userID
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s game.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		r.logger.Error("Failed to unmarshal session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Save persists the session and refreshes its TTL.
func (r *RedisStore) Save(ctx context.Context, s *game.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Error("Failed to marshal session", "user_id", s.UserID, "error", err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKeyPrefix + s.UserID
	if err := r.client.Set(ctx, key, string(data), r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session", "user_id", s.UserID, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Remove deletes the user's session.
func (r *RedisStore) Remove(ctx context.Context, userID string) error {
	key := sessionKeyPrefix + userID
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete session", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SweepIdle is a no-op: the per-key TTL already expires idle sessions.
func (r *RedisStore) SweepIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

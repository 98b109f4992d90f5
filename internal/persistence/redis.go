package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const streamLockPrefix = "ai_stream:"

// AcquireStreamLock takes a per-ticket lock so at most one AI reply is
// generated and persisted for a ticket at a time. Returns false when
// another stream holds the lock. When Redis is unreachable the lock
// degrades to a no-op grant rather than blocking replies.
func (r *Redis) AcquireStreamLock(ctx context.Context, ticketID string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return true, nil
	}
	ok, err := r.Client.SetNX(ctx, streamLockPrefix+ticketID, "1", ttl).Result()
	if err != nil {
		return true, nil
	}
	return ok, nil
}

// ReleaseStreamLock frees the per-ticket stream lock.
func (r *Redis) ReleaseStreamLock(ctx context.Context, ticketID string) {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Del(ctx, streamLockPrefix+ticketID).Err()
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/rbac-core/internal/infrastructure/config"
)

const keyPrefix = "rbac:ratelimit:"

// Limiter enforces a per-key request budget using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	limit  int
	window time.Duration
}

// New creates a limiter allowing limit requests per window.
func New(client redis.UniversalClient, limit int, window time.Duration) *Limiter {
	return &Limiter{redis: client, limit: limit, window: window}
}

// Connect opens a Redis client from config and verifies it with PING.
// The window is one minute.
func Connect(ctx context.Context, cfg config.RateLimitConfig) (*Limiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return New(client, cfg.RequestsPerMinute, time.Minute), nil
}

// Allow counts one request for scope+key and reports ErrRateLimited once
// the budget for the current window is spent. retryAfter is the time left
// in the window when limited.
func (l *Limiter) Allow(ctx context.Context, scope, key string) (retryAfter time.Duration, err error) {
	k := keyPrefix + scope + ":" + key

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
		}
	}

	if count <= int64(l.limit) {
		return 0, nil
	}

	ttl, err := l.redis.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return ttl, ErrRateLimited
}

// HealthCheck pings Redis.
func (l *Limiter) HealthCheck(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (l *Limiter) Close() error {
	return l.redis.Close()
}

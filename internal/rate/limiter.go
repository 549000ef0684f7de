package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxBeginAttempts int
	BeginWindow      time.Duration
}

// Limiter enforces per-IP limits on order initiation using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "bid"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowBegin counts one identification attempt for ip and returns
// [ErrRateLimited] once the window budget is spent. Empty IPs are not
// throttled.
func (l *Limiter) AllowBegin(ctx context.Context, ip string) error {
	if !l.config.EnableIPThrottle || ip == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.beginIPKey(ip), l.config.BeginWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxBeginAttempts) {
		return ErrRateLimited
	}

	return nil
}

// BeginAttempts returns the attempts counted for ip in the current window.
func (l *Limiter) BeginAttempts(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.beginIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// ResetBegin clears the counter for ip.
func (l *Limiter) ResetBegin(ctx context.Context, ip string) error {
	if err := l.redis.Del(ctx, l.beginIPKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) beginIPKey(ip string) string {
	return l.config.Prefix + ":rb:" + ip
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

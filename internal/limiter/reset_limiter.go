// Package limiter throttles password-reset requests per email address using
// Redis fixed windows, so the budget is shared across server instances.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("reset rate limited")
	ErrRedisUnavailable = errors.New("reset limiter redis unavailable")
)

type ResetLimiter struct {
	redis  redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

func NewResetLimiter(redisClient redis.UniversalClient, limit int, window time.Duration) *ResetLimiter {
	return &ResetLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: "lf:reset:req",
	}
}

// Allow counts one reset request for email and fails with ErrRateLimited once
// the window's budget is spent.
func (l *ResetLimiter) Allow(ctx context.Context, email string) error {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return nil
	}
	key := l.key(email)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	count := incr.Val()

	// A negative TTL means the key has no expiry: either this is the first
	// hit or an earlier EXPIRE was lost. Either way the window starts now.
	if ttl.Val() < 0 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(l.limit) {
		return ErrRateLimited
	}
	return nil
}

// key hashes the address so raw emails never land in Redis.
func (l *ResetLimiter) key(email string) string {
	sum := sha256.Sum256([]byte(email))
	return l.prefix + ":" + hex.EncodeToString(sum[:16])
}

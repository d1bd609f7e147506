// Package rate limits OTP issuance per contact pair using Redis: a short cooldown
// between consecutive requests, a count per window, and a block once the window
// budget is exhausted.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"launtriserv/backend/internal/apperror"
)

// Limiter throttles OTP issue requests. All state lives in Redis so multiple
// userserv replicas share one budget.
type Limiter struct {
	rdb      *redis.Client
	window   time.Duration
	max      int
	cooldown time.Duration
}

// NewLimiter returns a limiter allowing max requests per window per key, with a
// cooldown between consecutive requests. A block of three windows is applied
// once the budget is exhausted.
func NewLimiter(rdb *redis.Client, window time.Duration, max int, cooldown time.Duration) *Limiter {
	return &Limiter{rdb: rdb, window: window, max: max, cooldown: cooldown}
}

// Allow returns nil when a request for key may proceed, or a rate-limited error
// telling the caller how long to wait. Redis failures are internal faults.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	blockKey := "otp:block:" + key
	lastKey := "otp:last:" + key
	countKey := "otp:count:" + key

	if ttl, err := l.rdb.TTL(ctx, blockKey).Result(); err != nil {
		return apperror.Internal(err)
	} else if ttl > 0 {
		return fmt.Errorf("%w: too many OTP requests; try again in %ds", apperror.ErrRateLimited, int(ttl.Seconds()))
	}

	if ttl, err := l.rdb.TTL(ctx, lastKey).Result(); err != nil {
		return apperror.Internal(err)
	} else if ttl > 0 {
		return fmt.Errorf("%w: wait %ds before requesting another OTP", apperror.ErrRateLimited, int(ttl.Seconds()))
	}

	cnt, err := l.rdb.Incr(ctx, countKey).Result()
	if err != nil {
		return apperror.Internal(err)
	}
	if cnt == 1 {
		_ = l.rdb.Expire(ctx, countKey, l.window).Err()
	}
	if int(cnt) > l.max {
		block := l.window * 3
		_ = l.rdb.Set(ctx, blockKey, "1", block).Err()
		return fmt.Errorf("%w: too many OTP requests; try again in %ds", apperror.ErrRateLimited, int(block.Seconds()))
	}

	_ = l.rdb.Set(ctx, lastKey, "1", l.cooldown).Err()
	return nil
}

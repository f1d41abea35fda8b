// Package ratelimit throttles inbound updates per user.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPattern = "ratelimit:%d"

// Limiter is a fixed-window counter in Redis: up to limit updates per user
// per window.
type Limiter struct {
	rdb    *goredis.Client
	limit  int
	window time.Duration
	log    *slog.Logger
}

// NewLimiter creates a limiter allowing limit events per window.
func NewLimiter(rdb *goredis.Client, limit int, window time.Duration, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Allow reports whether the user may proceed. Fails open on Redis errors.
func (l *Limiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf(keyPattern, userID)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Error("rate limit check failed", "user_id", userID, "error", err)
		return true, err
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Error("failed to set rate limit window", "user_id", userID, "error", err)
		}
	}

	return count <= int64(l.limit), nil
}

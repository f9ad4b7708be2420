package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter implements a fixed-window counter on Redis INCR+EXPIRE.
// The window key is set to expire on first increment; losing the Expire call
// (e.g. Redis restart between the two commands) only makes the limiter
// stricter, never weaker.
type RateLimiter struct {
	cli RedisClient
}

func NewRateLimiter(cli RedisClient) *RateLimiter {
	return &RateLimiter{cli: cli}
}

// Allow reports whether another request under key fits in the current window.
// On Redis errors it fails open: limiting is protective, not authoritative.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s", key)
	n, err := r.cli.Incr(ctx, k)
	if err != nil {
		return true, err
	}
	if n == 1 {
		if err := r.cli.Expire(ctx, k, window); err != nil {
			return true, err
		}
	}
	return n <= int64(limit), nil
}

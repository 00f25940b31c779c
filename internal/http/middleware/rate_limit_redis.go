package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisFixedWindowLimiter counts hits in redis so the limit holds across
// instances. One INCR per request; the key expires with the window.
type redisFixedWindowLimiter struct {
	client *redis.Client
}

func NewRedisFixedWindowLimiter(client *redis.Client) Limiter {
	return &redisFixedWindowLimiter{client: client}
}

var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

func (l *redisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	res, err := rateLimitScript.Run(ctx, l.client, []string{"ratelimit:" + key}, window.Milliseconds()).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	count, _ := res[0].(int64)
	ttlMillis, _ := res[1].(int64)
	if ttlMillis < 0 {
		ttlMillis = window.Milliseconds()
	}
	ttl := time.Duration(ttlMillis) * time.Millisecond
	resetAt := time.Now().Add(ttl)

	if count > int64(limit) {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: ttl, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: limit - int(count), ResetAt: resetAt}, nil
}

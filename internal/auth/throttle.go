package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for an atomic check-and-increment. GET → check → INCR as
// separate commands would race under concurrent logins for the same key.
const throttleLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current >= limit then
    return 0
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return 1
`

// RedisThrottle limits login attempts per key within a fixed window.
type RedisThrottle struct {
	redis       *redis.Client
	script      *redis.Script
	maxAttempts int
	window      time.Duration
}

// NewRedisThrottle creates a throttle with pre-compiled Lua.
func NewRedisThrottle(client *redis.Client, maxAttempts int, window time.Duration) *RedisThrottle {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisThrottle{
		redis:       client,
		script:      redis.NewScript(throttleLuaScript),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow consumes one attempt for the key. Returns false once the window's
// budget is spent; the counter expires with the window.
func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	res, err := t.script.Run(ctx, t.redis,
		[]string{"login_attempts:" + key},
		t.maxAttempts, int(t.window.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("throttle check: %w", err)
	}
	return res == 1, nil
}

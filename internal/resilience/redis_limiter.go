package resilience

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter over Redis with a Lua script so the
// window check and increment are a single atomic operation across
// instances.
type RedisLimiter struct {
	client redis.UniversalClient
	script *redis.Script
}

// NewRedisLimiter creates a new RedisLimiter instance.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	luaScript := `
local window_key = KEYS[1]
local counter_key = KEYS[2]
local now = tonumber(ARGV[1])
local window_size = tonumber(ARGV[2])

local window_start = redis.call('GET', window_key)

-- Window absent or lapsed: open a fresh one. This is the only place
-- the expiry is set; later increments never refresh it.
if not window_start or (now - tonumber(window_start)) >= window_size then
    redis.call('SET', window_key, tostring(now))
    redis.call('SET', counter_key, 1)
    redis.call('EXPIRE', window_key, window_size)
    redis.call('EXPIRE', counter_key, window_size)
    return {tostring(now), 1}
end

local counter = redis.call('INCR', counter_key)
if redis.call('TTL', counter_key) == -1 then
    redis.call('EXPIRE', counter_key, window_size)
end
return {window_start, counter}
`
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(luaScript),
	}
}

// CheckAllow atomically increments the identity's window counter and
// compares it to the limit.
func (r *RedisLimiter) CheckAllow(ctx context.Context, identity string, limit int64, window time.Duration) (LimitResult, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := time.Now().Unix()
	windowSize := int64(window.Seconds())

	// The hash tag keeps both keys on the same cluster node.
	tag := fmt.Sprintf("{%s}:requests", identity)
	keys := []string{tag + ":window", tag + ":count"}

	val, err := r.script.Run(ctx, r.client, keys, now, windowSize).Result()
	if err != nil {
		return LimitResult{}, err
	}

	resultsSlice, ok := val.([]interface{})
	if !ok || len(resultsSlice) != 2 {
		return LimitResult{}, fmt.Errorf("unexpected result from redis script: %T", val)
	}

	windowStart := parseScriptInt(resultsSlice[0])
	current := parseScriptInt(resultsSlice[1])

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	return LimitResult{
		Allowed:   current <= limit,
		Current:   current,
		Remaining: remaining,
		ResetAt:   windowStart + windowSize,
	}, nil
}

func parseScriptInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	case float64:
		return int64(n)
	default:
		parsed, _ := strconv.ParseInt(fmt.Sprintf("%v", n), 10, 64)
		return parsed
	}
}

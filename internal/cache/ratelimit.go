package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit scopes. Each scope keys its buckets by a different subject.
const (
	ScopeAPI   = "api"   // session id
	ScopeLogin = "login" // client IP
	ScopePIN   = "pin"   // user id
)

const bucketKeyPrefix = "ratelimit:"

// RateLimitResult is the outcome of taking one token from a bucket.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// takeToken refills the bucket for the time elapsed since its last use and
// then tries to take one token. Timestamps are unix milliseconds.
//
// KEYS[1] bucket key
// ARGV    refill per ms, capacity, now, idle ttl ms
// returns {allowed, tokens left, ms until next token}
var takeToken = redis.NewScript(`
local per_ms   = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now      = tonumber(ARGV[3])

local state  = redis.call('HMGET', KEYS[1], 't', 'at')
local tokens = tonumber(state[1])
local at     = tonumber(state[2])
if tokens == nil then
	tokens, at = capacity, now
end
if now > at then
	tokens = math.min(capacity, tokens + (now - at) * per_ms)
end

local ok, wait = 0, 0
if tokens >= 1 then
	tokens = tokens - 1
	ok = 1
else
	wait = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', KEYS[1], 't', tostring(tokens), 'at', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {ok, math.floor(tokens), wait}
`)

// CheckRateLimit takes one token from the (scope, subject) bucket, which
// holds burst tokens and refills at ratePerMinute. A non-positive rate
// disables the limit. Redis failures let the request through.
func (c *Cache) CheckRateLimit(ctx context.Context, scope, subject string, ratePerMinute, burst int) (*RateLimitResult, error) {
	now := time.Now()
	if ratePerMinute <= 0 {
		return unlimited(now, burst), nil
	}
	if burst <= 0 {
		burst = ratePerMinute
	}

	perMs := float64(ratePerMinute) / float64(time.Minute/time.Millisecond)
	// An idle bucket is full again after burst/rate; keep it a bit longer.
	idle := time.Duration(math.Ceil(float64(burst)/perMs))*time.Millisecond + time.Minute

	res, err := takeToken.Run(ctx, c.client,
		[]string{bucketKey(scope, subject)},
		perMs, burst, now.UnixMilli(), idle.Milliseconds(),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		return unlimited(now, burst), nil
	}

	wait := time.Duration(res[2]) * time.Millisecond
	out := &RateLimitResult{
		Allowed:   res[0] == 1,
		Remaining: res[1],
		ResetAt:   now.Add(time.Duration(1 / perMs * float64(time.Millisecond))),
	}
	if !out.Allowed {
		out.RetryAfter = wait
		out.ResetAt = now.Add(wait)
	}
	return out, nil
}

// ResetRateLimit refills a bucket, e.g. after a correct PIN.
func (c *Cache) ResetRateLimit(ctx context.Context, scope, subject string) error {
	return c.client.Del(ctx, bucketKey(scope, subject)).Err()
}

func unlimited(now time.Time, burst int) *RateLimitResult {
	return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now.Add(time.Minute)}
}

// bucketKey never embeds the raw subject, so IPs and ids stay out of Redis.
func bucketKey(scope, subject string) string {
	return bucketKeyPrefix + scope + ":" + hashSubject(subject)
}

// hashSubject returns the first 8 bytes of sha256(subject) as hex.
func hashSubject(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}

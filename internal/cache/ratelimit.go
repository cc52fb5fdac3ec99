package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitInitiatePrefix keys initiate attempts per (caller, target).
	rateLimitInitiatePrefix = "ratelimit:merge:init:"
	// rateLimitVerifyPrefix keys verify attempts per merge token.
	rateLimitVerifyPrefix = "ratelimit:merge:verify:"
	// rateLimitIPPrefix keys per-IP limits on the account endpoints.
	rateLimitIPPrefix = "ratelimit:ip:"

	rateLimitInitiateTTL = time.Hour
	rateLimitVerifyTTL   = 20 * time.Minute
	rateLimitIPTTL       = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	-- Get current state
	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	-- Refill tokens based on elapsed time
	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	-- Check if request is allowed
	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		-- Calculate when 1 token will be available
		retry_after = math.ceil((1 - tokens) / rate)
	end

	-- Update state
	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckInitiateRateLimit throttles merge initiations per (caller, target)
// pair. This is an abuse guard, so Redis errors fail open.
func (c *Cache) CheckInitiateRateLimit(ctx context.Context, callerID, normalizedTarget string, perHour int) (*RateLimitResult, error) {
	key := rateLimitInitiatePrefix + callerID + ":" + hashKey(normalizedTarget)
	ratePerSecond := float64(perHour) / 3600.0

	result, err := c.checkRateLimit(ctx, key, ratePerSecond, perHour, int(rateLimitInitiateTTL.Seconds()))
	if err != nil {
		// Fail open on Redis errors - allow the request
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(perHour),
			ResetAt:   time.Now().Add(time.Hour),
		}, nil
	}
	return result, nil
}

// CheckVerifyRateLimit throttles code checks per merge token. This limit is
// the only thing bounding brute force over the 10^6 code space, so Redis
// errors fail closed: an unverifiable check is a denied check.
func (c *Cache) CheckVerifyRateLimit(ctx context.Context, token string, perMinute, burst int) (*RateLimitResult, error) {
	key := rateLimitVerifyPrefix + hashKey(token)
	ratePerSecond := float64(perMinute) / 60.0

	result, err := c.checkRateLimit(ctx, key, ratePerSecond, burst, int(rateLimitVerifyTTL.Seconds()))
	if err != nil {
		return &RateLimitResult{
			Allowed:    false,
			RetryAfter: time.Minute,
			ResetAt:    time.Now().Add(time.Minute),
		}, err
	}
	return result, nil
}

// CheckIPRateLimit checks and updates the rate limit for an IP address.
// IP is hashed to avoid storing raw IP addresses. Fails open.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + hashKey(ip)

	result, err := c.checkRateLimit(ctx, key, float64(ratePerSecond), burst, int(rateLimitIPTTL.Seconds()))
	if err != nil {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(burst),
			ResetAt:   time.Now().Add(time.Minute),
		}, nil
	}
	return result, nil
}

// checkRateLimit is the common rate limit implementation.
func (c *Cache) checkRateLimit(ctx context.Context, key string, rate float64, burst, ttl int) (*RateLimitResult, error) {
	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now, ttl,
	).Int64Slice()
	if err != nil {
		return nil, err
	}

	allowed := result[0] == 1
	retryAfterSec := result[1]
	remaining := result[2]

	return &RateLimitResult{
		Allowed:    allowed,
		Remaining:  remaining,
		ResetAt:    time.Now().Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(retryAfterSec) * time.Second,
	}, nil
}

// hashKey creates a truncated SHA256 hash of an identifier.
// Keeps raw emails, tokens and IPs out of Redis keys.
func hashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}

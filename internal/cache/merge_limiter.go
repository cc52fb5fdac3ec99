package cache

import "context"

// MergeLimits holds the merge workflow throttles.
type MergeLimits struct {
	InitiatePerHour int
	VerifyPerMinute int
	VerifyBurst     int
}

// MergeLimiter adapts the Redis token buckets to the merge workflow's
// limiter interface.
type MergeLimiter struct {
	cache  *Cache
	limits MergeLimits
}

// NewMergeLimiter creates a MergeLimiter backed by the given cache.
func NewMergeLimiter(cache *Cache, limits MergeLimits) *MergeLimiter {
	return &MergeLimiter{cache: cache, limits: limits}
}

// AllowInitiate reports whether the caller may open another merge request
// against this target. Redis errors fail open.
func (l *MergeLimiter) AllowInitiate(ctx context.Context, callerID, normalizedTarget string) (bool, error) {
	result, err := l.cache.CheckInitiateRateLimit(ctx, callerID, normalizedTarget, l.limits.InitiatePerHour)
	if err != nil {
		return true, err
	}
	return result.Allowed, nil
}

// AllowVerify reports whether another code check against this token is
// permitted. Redis errors fail closed and are returned to the caller.
func (l *MergeLimiter) AllowVerify(ctx context.Context, token string) (bool, error) {
	result, err := l.cache.CheckVerifyRateLimit(ctx, token, l.limits.VerifyPerMinute, l.limits.VerifyBurst)
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corates/corates/internal/model"
)

const (
	// sessionCachePrefix is the Redis key prefix for session auth cache.
	sessionCachePrefix = "auth:session:"
	// sessionCacheTTL is the time-to-live for cached auth contexts.
	sessionCacheTTL = 5 * time.Minute
)

// cachedAuthContext represents auth context stored in Redis.
type cachedAuthContext struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := sessionCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached cachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		SessionID: cached.SessionID,
		UserID:    cached.UserID,
		Email:     cached.Email,
	}, nil
}

// SetAuthContext caches an auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	key := sessionCachePrefix + cacheKey

	cached := cachedAuthContext{
		SessionID: auth.SessionID,
		UserID:    auth.UserID,
		Email:     auth.Email,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, key, data, sessionCacheTTL).Err()
}

// DeleteAuthContext removes a cached auth context.
// Used when a session is revoked, and by the merge executor's caller after
// the target identity is deleted.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	key := sessionCachePrefix + cacheKey
	return c.client.Del(ctx, key).Err()
}

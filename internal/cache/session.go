package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tzedaka/maaser/internal/model"
)

const (
	// sessionCachePrefix is the Redis key prefix for resolved sessions.
	sessionCachePrefix = "session:ctx:"
	// userSessionsPrefix indexes cache keys per user for invalidation.
	userSessionsPrefix = "session:user:"
	// MaxSessionCacheTTL caps how long a resolved session is trusted.
	MaxSessionCacheTTL = 5 * time.Minute
)

// cachedSession is the JSON stored per bearer token.
type cachedSession struct {
	SessionID   string    `json:"session_id"`
	TokenPrefix string    `json:"token_prefix"`
	UserID      string    `json:"user_id"`
	PinVerified bool      `json:"pin_verified"`
	HasPin      bool      `json:"has_pin"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func encodeSession(a *model.AuthContext) ([]byte, error) {
	return json.Marshal(cachedSession{
		SessionID:   a.SessionID,
		TokenPrefix: a.TokenPrefix,
		UserID:      a.UserID,
		PinVerified: a.PinVerified,
		HasPin:      a.HasPin,
		ExpiresAt:   a.ExpiresAt,
	})
}

func decodeSession(cacheKey string, data []byte) (*model.AuthContext, error) {
	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &model.AuthContext{
		SessionID:   cached.SessionID,
		TokenPrefix: cached.TokenPrefix,
		UserID:      cached.UserID,
		PinVerified: cached.PinVerified,
		HasPin:      cached.HasPin,
		CacheKey:    cacheKey,
		ExpiresAt:   cached.ExpiresAt,
	}, nil
}

// sessionTTL bounds the cache lifetime by the session's own expiry.
func sessionTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl > MaxSessionCacheTTL {
		ttl = MaxSessionCacheTTL
	}
	return ttl
}

// GetAuthContext retrieves a resolved session by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, sessionCachePrefix+cacheKey).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	authCtx, err := decodeSession(cacheKey, data)
	if err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return authCtx, nil
}

// SetAuthContext caches a resolved session and indexes it under its user.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, authCtx *model.AuthContext) error {
	ttl := sessionTTL(authCtx.ExpiresAt, time.Now())
	if ttl <= 0 {
		return nil
	}

	data, err := encodeSession(authCtx)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	userKey := userSessionsPrefix + authCtx.UserID
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, sessionCachePrefix+cacheKey, data, ttl)
	pipe.SAdd(ctx, userKey, cacheKey)
	pipe.Expire(ctx, userKey, MaxSessionCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// DeleteAuthContext removes a cached session.
// Used on logout and whenever the session's PIN state changes.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, sessionCachePrefix+cacheKey).Err()
}

// InvalidateUserSessions removes every cached session of a user.
func (c *Cache) InvalidateUserSessions(ctx context.Context, userID string) error {
	userKey := userSessionsPrefix + userID

	keys, err := c.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list cached sessions: %w", err)
	}

	toDelete := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		toDelete = append(toDelete, sessionCachePrefix+k)
	}
	toDelete = append(toDelete, userKey)

	return c.client.Del(ctx, toDelete...).Err()
}

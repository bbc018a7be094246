// Package cache holds the Redis read-through cache for share lookups on the
// public, unauthenticated path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TrackTalk/model"

	"github.com/redis/go-redis/v9"
)

// ShareCache caches share records keyed by token. The shares table stays the
// source of truth: every share mutation invalidates the token's entry, and
// the TTL bounds staleness if an invalidation is ever missed. Validity is
// still evaluated fresh on every request from the cached record's fields.
type ShareCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewShareCache creates a ShareCache.
func NewShareCache(client *redis.Client, ttl time.Duration) *ShareCache {
	return &ShareCache{client: client, ttl: ttl}
}

func shareKey(token string) string {
	return fmt.Sprintf("share:token:%s", token)
}

// Get returns the cached share for a token, or nil on a miss.
func (c *ShareCache) Get(ctx context.Context, token string) (*model.Share, error) {
	data, err := c.client.Get(ctx, shareKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached share: %w", err)
	}

	var share model.Share
	if err := json.Unmarshal(data, &share); err != nil {
		return nil, fmt.Errorf("failed to decode cached share: %w", err)
	}
	return &share, nil
}

// Set stores the share under its token.
func (c *ShareCache) Set(ctx context.Context, share *model.Share) error {
	data, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("failed to encode share for cache: %w", err)
	}
	if err := c.client.Set(ctx, shareKey(share.Token), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache share: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for a token.
func (c *ShareCache) Invalidate(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, shareKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached share: %w", err)
	}
	return nil
}

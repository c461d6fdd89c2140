package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lumenforge/lumenforge/internal/auth"
)

// RedisRoleCache shares resolved role sets between API replicas.
// Values are JSON arrays of role names; expiry uses the key TTL.
type RedisRoleCache struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// NewRedisRoleCache wraps an existing client.
func NewRedisRoleCache(client redis.UniversalClient, ttl time.Duration, keyPrefix string) *RedisRoleCache {
	return &RedisRoleCache{client: client, ttl: ttl, keyPrefix: keyPrefix}
}

// DialRedisRoleCache parses a redis:// URL, connects and pings.
func DialRedisRoleCache(ctx context.Context, redisURL string, ttl time.Duration, keyPrefix string) (*RedisRoleCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisRoleCache(client, ttl, keyPrefix), nil
}

// Key returns the redis key for a cache key. Components are escaped so a
// subject containing ':' cannot collide with another (subject, token) pair.
func (c *RedisRoleCache) Key(key CacheKey) string {
	return fmt.Sprintf("%s:%s:%s", c.keyPrefix, url.QueryEscape(key.Subject), url.QueryEscape(key.TokenID))
}

func (c *RedisRoleCache) Get(ctx context.Context, key CacheKey) (auth.RoleSet, bool, error) {
	payload, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.RoleSet{}, false, nil
	}
	if err != nil {
		return auth.RoleSet{}, false, fmt.Errorf("redis get: %w", err)
	}

	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		return auth.RoleSet{}, false, fmt.Errorf("decode cached roles: %w", err)
	}
	roles, err := auth.RoleSetFromNames(names)
	if err != nil {
		return auth.RoleSet{}, false, fmt.Errorf("decode cached roles: %w", err)
	}
	return roles, true, nil
}

func (c *RedisRoleCache) Set(ctx context.Context, key CacheKey, roles auth.RoleSet) error {
	payload, err := json.Marshal(roles.Names())
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *RedisRoleCache) Close() error {
	return c.client.Close()
}

//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package chunk

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ansera-ai/ansera/log"
)

const (
	defaultLRUSize  = 4096
	defaultRedisTTL = time.Hour
)

// LRUCache is a bounded in-process Cache.
type LRUCache struct {
	inner *lru.Cache[string, string]
}

// NewLRUCache creates an LRU cache with the given capacity. A non-positive
// size falls back to the default.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	inner, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRUCache{inner: inner}, nil
}

// Get implements Cache.
func (c *LRUCache) Get(_ context.Context, key string) (string, bool) {
	return c.inner.Get(key)
}

// Set implements Cache.
func (c *LRUCache) Set(_ context.Context, key, value string) {
	c.inner.Add(key, value)
}

// RedisCache is a Cache shared across processes via Redis. Cache failures
// are logged and treated as misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisCacheOption configures RedisCache.
type RedisCacheOption func(*RedisCache)

// WithRedisTTL sets the entry expiry.
func WithRedisTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) {
		c.ttl = ttl
	}
}

// WithRedisKeyPrefix sets the key namespace prefix.
func WithRedisKeyPrefix(prefix string) RedisCacheOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// NewRedisCache creates a Redis-backed cache over an existing client.
func NewRedisCache(client redis.UniversalClient, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: "chunk:",
		ttl:    defaultRedisTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("redis chunk cache get %s: %v", key, err)
		}
		return "", false
	}
	return val, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		log.Warnf("redis chunk cache set %s: %v", key, err)
	}
}

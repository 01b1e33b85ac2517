// Package cache is the volatile shadow in front of the durable store
// (SPEC_FULL.md §4 "cache coherence protocol"): the durable store is always
// the source of truth, the cache is a short-TTL read accelerator, and every
// write path that changes a session's durable state must invalidate the
// matching cache keys rather than let them go stale silently.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"wayfarer/internal/config"
)

// Cache is the namespaced get/set/delete port every upper layer (memory,
// intent, places) depends on. Keys are caller-constructed so this package
// stays ignorant of what "agent:memory:" or "agent:intent:" mean.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// RedisCache is a go-redis-backed Cache. Pattern deletes use SCAN+DEL in
// batches rather than KEYS, which blocks the whole server on a large
// keyspace.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache dials Redis when enabled; returns (nil, nil) when disabled so
// callers fall back to InMemoryCache without a branch at every call site.
// When cfg.TLSEnabled is set, the connection is upgraded to TLS;
// cfg.TLSInsecureSkipVerify is for deployments that terminate TLS at a
// sidecar with a self-signed cert and must opt into skipping verification
// explicitly rather than have it hardcoded on.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSInsecureSkipVerify}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeletePattern scans the keyspace in cursor batches of 200, rather than a
// single KEYS call, so invalidating e.g. "agent:memory:<session>:*" doesn't
// stall other clients sharing the Redis instance.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

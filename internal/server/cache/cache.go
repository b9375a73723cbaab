// Package cache keeps short-lived values, such as presigned icon URLs,
// outside the database.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKV stores values in Redis under a common key prefix.
type RedisKV struct {
	c      *redis.Client
	prefix string
}

func NewRedisKV(c *redis.Client, prefix string) *RedisKV { return &RedisKV{c: c, prefix: prefix} }

// NewRedisClient connects to addr; an empty password and db 0 are the
// defaults of a local instance.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, r.prefix+key, value, ttl).Err()
}

// Noop never stores anything. It stands in when no Redis is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error)              { return "", ErrMiss }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }

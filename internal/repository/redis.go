package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend stores the document as a single string value.
type RedisBackend struct {
	rdb *redis.Client
	key string
}

// NewRedisBackend connects to Redis and verifies connectivity.
func NewRedisBackend(ctx context.Context, cfg RedisConfig, key string) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis_backend: ping: %w", err)
	}
	return &RedisBackend{rdb: rdb, key: key}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(rdb *redis.Client, key string) *RedisBackend {
	return &RedisBackend{rdb: rdb, key: key}
}

// Read fetches the document.
func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	doc, err := b.rdb.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("redis_backend.Read: %w", err)
	}
	return doc, nil
}

// Write stores the document without expiry.
func (b *RedisBackend) Write(ctx context.Context, doc []byte) error {
	if err := b.rdb.Set(ctx, b.key, doc, 0).Err(); err != nil {
		return fmt.Errorf("redis_backend.Write: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}

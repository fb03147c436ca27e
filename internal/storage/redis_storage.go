package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vultisig/schedpay/config"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(ctx context.Context, cfg config.RedisConfig) (*RedisStorage, error) {
	opts, err := cfg.GetRedisOptions()
	if err != nil {
		return nil, fmt.Errorf("cfg.GetRedisOptions: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("client.Ping: %w", err)
	}
	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Get returns ErrCacheMiss when the key is absent or expired.
func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("client.Get: %w", err)
	}
	return val, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiry).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

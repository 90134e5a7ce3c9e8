package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps reservations in Redis so they are shared by every instance.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a RedisStore.
func NewRedisStoreFromURL(url, prefix string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis reservation store: connection failed: %w", err)
	}
	return NewRedisStore(client, prefix, logger), nil
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Reserve claims key with SET NX so only one instance can hold it.
func (r *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		r.logger.Error("Redis reservation error", "key", key, "error", err)
		return false, err
	}
	return ok, nil
}

// Release drops key.
func (r *RedisStore) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.Error("Redis release error", "key", key, "error", err)
		return err
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on Redis string keys.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStorage connects to Redis and verifies the connection with PING.
func NewRedisStorage(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("initialized redis storage", "addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.Prefix)

	return NewRedisStorageFromClient(client, cfg.Prefix, logger), nil
}

// NewRedisStorageFromClient wraps an existing client.
func NewRedisStorageFromClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, logger: logger}
}

// Get retrieves the value at key.
func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, &StorageError{Op: "Get", Key: key, Err: err}
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "Get", Key: key, Err: err}
	}
	return data, nil
}

// Set stores value at key without expiry.
func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Set", Key: key, Err: err}
	}
	if len(value) > MaxValueSize {
		return &StorageError{Op: "Set", Key: key, Err: ErrTooLarge}
	}

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return &StorageError{Op: "Set", Key: key, Err: err}
	}

	s.logger.Debug("stored value in redis", "key", key, "size", len(value))
	return nil
}

// Delete removes key.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

package store

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
)

// DefaultKeyPrefix namespaces document keys in Redis.
const DefaultKeyPrefix = "dnsbot:"

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Address   string
	DB        int
	Password  string
	KeyPrefix string
}

// RedisBackend keeps each document under one string key.
type RedisBackend struct {
	client rueidis.Client
	prefix string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Address},
		SelectDB:     cfg.DB,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Address, err)
	}

	b := NewRedisBackendWithClient(client, cfg.KeyPrefix)
	if err := b.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client rueidis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// Key returns the Redis key for a document.
func (b *RedisBackend) Key(name string) string {
	return b.prefix + name
}

// Read implements Backend.
func (b *RedisBackend) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Do(ctx, b.client.B().Get().Key(b.Key(name)).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}
	return data, err
}

// Write implements Backend. A single SET replaces the value atomically.
func (b *RedisBackend) Write(ctx context.Context, name string, data []byte) error {
	return b.client.Do(ctx, b.client.B().Set().Key(b.Key(name)).Value(rueidis.BinaryString(data)).Build()).Error()
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Do(ctx, b.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	b.client.Close()
	return nil
}

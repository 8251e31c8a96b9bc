package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultRedisNamespace = "storefront"

type RedisStoreConfig struct {
	// Namespace prefixes every key, e.g. "storefront:session:abc:cart".
	Namespace string
	// TTL of zero keeps entries until they are overwritten.
	TTL time.Duration
}

type RedisStore struct {
	client *redis.Client
	config RedisStoreConfig
}

func NewRedisStore(client *redis.Client, config RedisStoreConfig) *RedisStore {
	if config.Namespace == "" {
		config.Namespace = DefaultRedisNamespace
	}
	return &RedisStore{client: client, config: config}
}

func (s *RedisStore) key(k string) string {
	return s.config.Namespace + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

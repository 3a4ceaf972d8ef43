package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	redisclient "github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/redis"
)

// keyNamespace prefixes every cache key so nutrition and analysis
// entries can share a Redis instance with other services without
// collisions, and can be inspected or flushed as one keyspace.
const keyNamespace = "nutrifit:"

// RedisAdapter implements the CacheProvider interface on Redis. Entries
// always carry a TTL; the analysis store relies on that to use Redis as
// its expiring index.
type RedisAdapter struct {
	client *redisclient.Client
}

// NewRedisAdapter creates a new Redis cache adapter
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return &RedisAdapter{
		client: client,
	}
}

func namespacedKey(key string) string {
	return keyNamespace + key
}

// Get retrieves a value from cache
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Client().Get(ctx, namespacedKey(key)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return result, nil
}

// Set stores a value with a TTL. A non-positive TTL is treated as
// already expired and stores nothing: go-redis would interpret zero as
// "no expiration", which would leave tombstones and analysis copies
// behind forever.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	if expirationSeconds <= 0 {
		return nil
	}
	expiration := time.Duration(expirationSeconds) * time.Second
	if err := a.client.Client().Set(ctx, namespacedKey(key), value, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, namespacedKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Exists checks if a key exists in cache
func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	result, err := a.client.Client().Exists(ctx, namespacedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence in cache: %w", err)
	}
	return result > 0, nil
}

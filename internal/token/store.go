// Package token persists the client's auth token and user identity. The
// connection core only depends on the Store contract; implementations cover
// Redis-backed persistence and an in-memory store for tests and tokenless
// runs.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known keys.
const (
	KeyAccessToken = "accessToken"
	KeyUserID      = "userId"
	KeyUserName    = "userName"
)

// Store is the persistent credential contract: get returns the empty string
// for absent keys rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

const (
	// keyPrefix namespaces all credential keys in Redis.
	keyPrefix = "token:"

	// credentialTTL is the time-to-live for credential keys; every Set
	// refreshes it.
	credentialTTL = 30 * 24 * time.Hour
)

// RedisStore persists credentials in Redis under the token: prefix.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("token: redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get retrieves a credential. Returns "" with no error if the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token: get %s: %w", key, err)
	}
	return val, nil
}

// Set stores a credential and refreshes its TTL. An empty value deletes the
// key so stale credentials do not linger.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if value == "" {
		return s.client.Del(ctx, keyPrefix+key).Err()
	}
	return s.client.Set(ctx, keyPrefix+key, value, credentialTTL).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

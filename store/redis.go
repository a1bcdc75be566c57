package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// redisKeyPrefix namespaces webchat entries in a shared Redis.
	redisKeyPrefix = "webchat:"
	// defaultTTL matches the session expiry window, so Redis evicts entries
	// the session layer would refuse to restore anyway.
	defaultTTL = 24 * time.Hour
)

// RedisAdapter persists entries in Redis with a TTL. Intended for server-side
// hosts where chat sessions should survive process restarts and be shared
// across replicas.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAdapter creates a Redis-backed adapter. A non-positive ttl falls
// back to 24 hours.
func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) key(k string) string {
	return redisKeyPrefix + k
}

// Get retrieves a value by key. A missing key is not an error. The TTL is
// refreshed on read so active sessions do not expire under the user.
func (r *RedisAdapter) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	_ = r.client.Expire(ctx, r.key(key), r.ttl).Err()
	return json.RawMessage(val), true, nil
}

// Set stores a value by key with the configured TTL.
func (r *RedisAdapter) Set(ctx context.Context, key string, value json.RawMessage) error {
	return r.client.Set(ctx, r.key(key), []byte(value), r.ttl).Err()
}

// Delete removes a key.
func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Has returns true if the key exists.
func (r *RedisAdapter) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes all webchat entries.
func (r *RedisAdapter) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

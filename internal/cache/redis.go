// Package cache provides Redis-backed helpers: a response cache for the
// weather client and a lease that keeps bot replicas from running the same
// scheduler job at once.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis wraps a go-redis client with a key prefix.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis helper using the default "weatherbot:" key prefix.
func NewRedis(client redis.UniversalClient) *Redis {
	return NewRedisWithPrefix(client, "weatherbot:")
}

// NewRedisWithPrefix creates a Redis helper with a custom key prefix.
func NewRedisWithPrefix(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Dial parses a redis:// URL, connects and pings.
func Dial(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(client), nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns the cached value; ok is false on a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// Set stores value for ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// releaseScript deletes the lease only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Acquire takes the named lease for ttl. ok is false when another holder
// has it. The returned release func is safe to call after expiry.
func (r *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	key := r.prefix + "lease:" + name
	token := uuid.NewString()

	status, err := r.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		// NX not met comes back as a nil reply.
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis SET NX: %w", err)
	}
	if status != "OK" {
		return nil, false, nil
	}
	release = func() {
		// Release must run even when the tick context was cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}
	return release, true, nil
}

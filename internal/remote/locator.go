package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LocatorCache remembers where the shared file lives between calls and,
// for the Redis variant, between processes.
type LocatorCache interface {
	Load(ctx context.Context) (string, error)
	Store(ctx context.Context, loc string) error
	Clear(ctx context.Context) error
}

// MemoryLocator is a process-local LocatorCache.
type MemoryLocator struct {
	mu  sync.Mutex
	loc string
}

func (m *MemoryLocator) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loc, nil
}

func (m *MemoryLocator) Store(_ context.Context, loc string) error {
	m.mu.Lock()
	m.loc = loc
	m.mu.Unlock()
	return nil
}

func (m *MemoryLocator) Clear(context.Context) error {
	return m.Store(context.Background(), "")
}

// RedisLocator keeps the locator under ignite:locator:<name>.
type RedisLocator struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocator connects to redisURL (redis://host:port/db) and verifies
// the connection.
func NewRedisLocator(ctx context.Context, redisURL, name string, ttl time.Duration) (*RedisLocator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("remote: ping redis: %w", err)
	}
	return NewRedisLocatorWithClient(client, name, ttl), nil
}

// NewRedisLocatorWithClient wraps an existing client. A zero ttl never expires.
func NewRedisLocatorWithClient(client *redis.Client, name string, ttl time.Duration) *RedisLocator {
	return &RedisLocator{client: client, key: "ignite:locator:" + name, ttl: ttl}
}

func (r *RedisLocator) Load(ctx context.Context) (string, error) {
	loc, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("remote: redis get: %w", err)
	}
	return loc, nil
}

func (r *RedisLocator) Store(ctx context.Context, loc string) error {
	if err := r.client.Set(ctx, r.key, loc, r.ttl).Err(); err != nil {
		return fmt.Errorf("remote: redis set: %w", err)
	}
	return nil
}

func (r *RedisLocator) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("remote: redis del: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisLocator) Close() error { return r.client.Close() }

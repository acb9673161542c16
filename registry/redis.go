package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry is a fleet-wide Registry backend: SET key value NX EX
// enforces insert-unique across every process sharing the same broker,
// grounded on the teacher's only other Redis client, gvisor.StateCloner in
// internal/gvisor/state_cloner.go.
//
// Unlike MemoryRegistry, a Redis entry cannot hold a live session handle —
// only a string owner marker survives the round trip to Redis. Insert
// therefore renders handle with fmt.Sprint, and Lookup returns that string
// back as the any value; callers that need the real handle keep their own
// local MemoryRegistry alongside RedisRegistry and use Redis purely for the
// cross-process uniqueness check.
type RedisRegistry struct {
	client *redis.Client
	lease  time.Duration
	prefix string
}

// RedisRegistryConfig configures a RedisRegistry.
type RedisRegistryConfig struct {
	Addr   string
	Lease  time.Duration
	Prefix string
}

// NewRedisRegistry creates a RedisRegistry. Lease defaults to 30s and Prefix
// to "fixsense:session:" when left zero.
func NewRedisRegistry(cfg RedisRegistryConfig) *RedisRegistry {
	lease := cfg.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fixsense:session:"
	}
	return &RedisRegistry{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		lease:  lease,
		prefix: prefix,
	}
}

func (r *RedisRegistry) redisKey(key string) string {
	return r.prefix + key
}

// Insert implements Registry using SETNX-with-expiry for cross-process
// insert-unique.
func (r *RedisRegistry) Insert(key string, handle any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.redisKey(key), fmt.Sprint(handle), r.lease).Result()
	if err != nil {
		return fmt.Errorf("registry: redis setnx: %w", err)
	}
	if !ok {
		return ErrAlreadyRegistered
	}
	return nil
}

// Lookup implements Registry.
func (r *RedisRegistry) Lookup(key string) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: redis get: %w", err)
	}
	return val, nil
}

// Delete implements Registry.
func (r *RedisRegistry) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("registry: redis del: %w", err)
	}
	return nil
}

// Refresh extends the lease on an existing entry, so a live session can
// keep its cross-process reservation alive past the initial lease window.
func (r *RedisRegistry) Refresh(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Expire(ctx, r.redisKey(key), r.lease).Err(); err != nil {
		return fmt.Errorf("registry: redis expire: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client connection pool.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

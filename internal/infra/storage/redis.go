package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding the ladder state.
const DefaultRedisKey = "dca_ladder:state"

// RedisStore keeps the state in a single Redis hash.
// Durability follows the server's persistence settings (AOF with fsync recommended).
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore wraps an existing client. An empty hashKey uses DefaultRedisKey.
func NewRedisStore(rdb *redis.Client, hashKey string) *RedisStore {
	if hashKey == "" {
		hashKey = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: hashKey}
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts *redis.Options, hashKey string) (*RedisStore, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewRedisStore(rdb, hashKey), nil
}

// Get reads one field of the state hash
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rdb.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes all fields in a MULTI/EXEC transaction
func (s *RedisStore) Set(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(entries)*2)
	for k, v := range entries {
		args = append(args, k, v)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, args...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

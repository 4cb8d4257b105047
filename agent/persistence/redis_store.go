package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// newRedisClient builds a client from config and verifies the connection.
func newRedisClient(config StoreConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func redisPrefix(config StoreConfig) string {
	if config.Redis.KeyPrefix == "" {
		return "agentweaver:"
	}
	return config.Redis.KeyPrefix
}

// RedisCheckpointStore is a Redis-based implementation of CheckpointStore.
// Blobs are plain string values; a sorted set indexes keys for List.
type RedisCheckpointStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCheckpointStore creates a new Redis-based checkpoint store
func NewRedisCheckpointStore(config StoreConfig) (*RedisCheckpointStore, error) {
	client, err := newRedisClient(config)
	if err != nil {
		return nil, err
	}
	return NewRedisCheckpointStoreWithClient(client, redisPrefix(config)), nil
}

// NewRedisCheckpointStoreWithClient wraps an existing client
func NewRedisCheckpointStoreWithClient(client *redis.Client, keyPrefix string) *RedisCheckpointStore {
	return &RedisCheckpointStore{client: client, keyPrefix: keyPrefix + "checkpoint:"}
}

// Close closes the store
func (s *RedisCheckpointStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisCheckpointStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCheckpointStore) dataKey(key string) string {
	return s.keyPrefix + "data:" + key
}

func (s *RedisCheckpointStore) indexKey() string {
	return s.keyPrefix + "index"
}

// Save persists a blob and indexes its key
func (s *RedisCheckpointStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrInvalidInput
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(key), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves a blob
func (s *RedisCheckpointStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return data, nil
}

// Delete removes a blob and its index entry
func (s *RedisCheckpointStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns indexed keys with prefix.
// All members share score 0 so the set is ordered lexicographically.
func (s *RedisCheckpointStore) List(ctx context.Context, prefix string) ([]string, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	keys := make([]string, 0, len(members))
	for _, m := range members {
		if strings.HasPrefix(m, prefix) {
			keys = append(keys, m)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

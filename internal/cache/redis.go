package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by RedisStore.
const DefaultRedisPrefix = "calhue:colours:"

const (
	fieldData      = "data"
	fieldWrittenAt = "written_at"
	fieldSource    = "source"
)

// RedisStore keeps artifacts in Redis hashes keyed by a hash of the absolute
// source path.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore over an existing client. An empty prefix
// selects DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient connects to addr and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is not configured")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis (%s, db %d): %w", addr, db, err)
	}

	return rdb, nil
}

// Location returns the Redis key for source.
func (s *RedisStore) Location(source string) string {
	return s.prefix + KeyFor(source)
}

// Load fetches the artifact hash for source.
func (s *RedisStore) Load(ctx context.Context, source string) (Artifact, error) {
	key := s.Location(source)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("failed to read cache artifact %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Artifact{}, ErrNotFound
	}

	data, ok := fields[fieldData]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s has no %s field", ErrCorrupt, key, fieldData)
	}

	writtenAt, err := time.Parse(time.RFC3339Nano, fields[fieldWrittenAt])
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s has invalid %s: %w", ErrCorrupt, key, fieldWrittenAt, err)
	}

	return Artifact{Data: []byte(data), WrittenAt: writtenAt, Location: key}, nil
}

// Save replaces the artifact hash for source in a single transaction.
func (s *RedisStore) Save(ctx context.Context, source string, data []byte) error {
	key := s.Location(source)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldData, string(data),
			fieldWrittenAt, time.Now().UTC().Format(time.RFC3339Nano),
			fieldSource, source,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache artifact %s: %w", key, err)
	}
	return nil
}

// Delete removes the artifact hash for source.
func (s *RedisStore) Delete(ctx context.Context, source string) error {
	key := s.Location(source)

	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to remove cache artifact %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

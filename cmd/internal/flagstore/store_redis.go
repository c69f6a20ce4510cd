package flagstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps flags as plain string keys under "arcshell:flags:<namespace>:".
// Keys never expire; the flag lives until Remove.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore constructs a RedisStore. The client is owned by the caller.
func NewRedisStore(rdb redis.UniversalClient, namespace string) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrInvalidInput)
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, fmt.Errorf("%w: empty namespace", ErrInvalidInput)
	}
	return &RedisStore{rdb: rdb, prefix: "arcshell:flags:" + namespace + ":"}, nil
}

// Get loads a value.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !validKey(key) {
		return "", false, ErrInvalidInput
	}

	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("flagstore: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores a value without TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if !validKey(key) {
		return ErrInvalidInput
	}
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("flagstore: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes a value.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidInput
	}
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("flagstore: remove %q: %w", key, err)
	}
	return nil
}

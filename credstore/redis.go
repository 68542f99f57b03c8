package credstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authmachine/state"
)

// RedisStore keeps the credentials record under one Redis key.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	namespace string
	ttl       time.Duration

	mu sync.Mutex
}

// NewRedisStore creates a store writing to "<prefix>:<namespace>:credentials".
// An empty namespace maps to "default". A positive ttl bounds how long a
// record survives without being saved again.
func NewRedisStore(rdb redis.UniversalClient, prefix, namespace string, ttl time.Duration) *RedisStore {
	if namespace == "" {
		namespace = "default"
	}
	return &RedisStore{redis: rdb, prefix: prefix, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) key() string {
	return s.prefix + ":" + s.namespace + ":credentials"
}

// Save replaces the stored record.
//
//	Performance: 1 Redis SET.
func (s *RedisStore) Save(ctx context.Context, creds state.Credentials) error {
	data, err := Encode(creds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.redis.Set(ctx, s.key(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Retrieve loads the stored record.
//
//	Performance: 1 Redis GET.
func (s *RedisStore) Retrieve(ctx context.Context) (state.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state.Credentials{}, ErrNotFound
		}
		return state.Credentials{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Decode(data)
}

// Delete removes the record. Deleting a missing record succeeds.
func (s *RedisStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

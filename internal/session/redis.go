package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// keyPrefix namespaces session keys in a shared Redis.
const keyPrefix = "session:"

// RedisStore stores each session as a JSON string with a native expiry.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a RedisStore over client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, identity string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, keyPrefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(val)
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, identity string, sess *domain.Session, ttl time.Duration) error {
	b, err := encode(identity, sess, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+identity, b, ttlOrDefault(ttl)).Err()
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, identity string) error {
	return s.client.Del(ctx, keyPrefix+identity).Err()
}

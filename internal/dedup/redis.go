package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger marks ids with SET NX EX under "dedup:<id>".
type RedisLedger struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLedger returns a RedisLedger with the given window.
func NewRedisLedger(client redis.UniversalClient, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

// SeenAndMark implements Ledger.
func (l *RedisLedger) SeenAndMark(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	set, err := l.client.SetNX(ctx, "dedup:"+messageID, 1, l.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

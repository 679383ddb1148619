// Package session persists the per-identity conversation Session with a
// time-to-live. Three drivers share one contract and one JSON envelope:
//
//   - MemoryStore: process-local map, for development and tests
//   - RedisStore:  keys "session:<identity>" with native EX expiry
//   - SQLStore:    the sessions table, expiry checked on read
//
// Resilient wraps any driver with a single retry and degrades a failing Get
// to "no session" so the conversation engine can always make progress.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// DefaultTTL is used when Set is called with a non-positive ttl.
const DefaultTTL = 10 * time.Minute

// ErrCorrupt wraps a stored session that cannot be decoded or violates the
// mode/step invariant.
var ErrCorrupt = errors.New("session: corrupt record")

// Store is the session persistence contract.
//
// Get returns (nil, nil) when no live session exists. Set replaces the
// identity's session and restarts its ttl. Clear is idempotent.
type Store interface {
	Get(ctx context.Context, identity string) (*domain.Session, error)
	Set(ctx context.Context, identity string, s *domain.Session, ttl time.Duration) error
	Clear(ctx context.Context, identity string) error
}

// encode validates s and renders the shared envelope.
func encode(identity string, s *domain.Session, now time.Time) ([]byte, error) {
	if s == nil || s.Flow == nil {
		return nil, fmt.Errorf("session: refusing to store an empty session for %s", identity)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cp := *s
	cp.Identity = identity
	cp.UpdatedAt = now
	return json.Marshal(cp)
}

// decode parses an envelope and re-checks the invariant.
func decode(b []byte) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &s, nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// Package dedup remembers inbound transport message ids for a bounded window
// so that redelivered webhooks are applied at most once.
//
// SeenAndMark is the only operation and it is atomic: for a given id,
// exactly one caller within the window observes false ("first time").
// An empty id is never recorded and always reports false.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the dedup window used when none is configured.
const DefaultTTL = 24 * time.Hour

// Ledger is the dedup contract.
type Ledger interface {
	SeenAndMark(ctx context.Context, messageID string) (bool, error)
}

// MemoryLedger keeps ids in a map with per-id expiry. Expired ids are swept
// lazily every sweepEvery calls, mirroring the rate limiter's visitor map.
type MemoryLedger struct {
	mu         sync.Mutex
	seen       map[string]time.Time
	ttl        time.Duration
	now        func() time.Time
	calls      int
	sweepEvery int
}

// NewMemoryLedger returns a MemoryLedger with the given window.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		seen:       make(map[string]time.Time),
		ttl:        ttl,
		now:        time.Now,
		sweepEvery: 1024,
	}
}

// SeenAndMark implements Ledger.
func (l *MemoryLedger) SeenAndMark(_ context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%l.sweepEvery == 0 {
		for id, exp := range l.seen {
			if !now.Before(exp) {
				delete(l.seen, id)
			}
		}
	}

	if exp, ok := l.seen[messageID]; ok && now.Before(exp) {
		return true, nil
	}
	l.seen[messageID] = now.Add(l.ttl)
	return false, nil
}

// Len reports the number of remembered ids.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

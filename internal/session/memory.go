package session

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

type memEntry struct {
	payload []byte
	expires time.Time
}

// MemoryStore keeps serialized sessions in a map. Entries are stored encoded
// so callers never share a Flow value with the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, identity string) (*domain.Session, error) {
	m.mu.Lock()
	e, ok := m.entries[identity]
	if ok && !m.now().Before(e.expires) {
		delete(m.entries, identity)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decode(e.payload)
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, identity string, s *domain.Session, ttl time.Duration) error {
	now := m.now()
	b, err := encode(identity, s, now)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[identity] = memEntry{payload: b, expires: now.Add(ttlOrDefault(ttl))}
	m.mu.Unlock()
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, identity string) error {
	m.mu.Lock()
	delete(m.entries, identity)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

package conversation

import "sync"

// Locks serializes work per identity. Entries are reference counted and
// removed when the last holder releases, so the registry only holds
// identities that are currently busy.
type Locks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty registry.
func NewLocks() *Locks {
	return &Locks{m: make(map[string]*lockEntry)}
}

// Lock blocks until key is free and returns its release function. The
// release function must be called exactly once.
func (l *Locks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e := l.m[key]
	if e == nil {
		e = &lockEntry{}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of identities currently held or awaited.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

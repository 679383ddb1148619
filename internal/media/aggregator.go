// Package media batches attachments that arrive as separate inbound events
// and releases them as one ordered batch after a quiet period.
//
// Each identity owns one slot: a pending list, the tag of the subject the
// list belongs to, a generation counter, a flush timer and an idle timer.
// Every Enqueue appends, bumps the generation, and re-arms both timers, so a
// timer that fires for an older generation does nothing. A batch is detached
// exactly once, either by its flush timer or by FlushNow, never both, and
// always carries the tag it was queued under.
package media

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// Defaults for the debounce windows.
const (
	DefaultQuiet = 3 * time.Second
	DefaultIdle  = 25 * time.Second
)

// Item is one inbound attachment awaiting upload.
type Item struct {
	// ID is the transport's media identifier (Meta media id) when the
	// attachment is not directly addressable by URL.
	ID          string
	URL         string
	ContentType string
	EnqueuedAt  time.Time
}

// Kind classifies the item by content type.
func (it Item) Kind() string {
	ct := strings.ToLower(it.ContentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return domain.MediaImage
	case strings.HasPrefix(ct, "video/"):
		return domain.MediaVideo
	default:
		return domain.MediaOther
	}
}

// FlushFunc receives a detached batch and the tag it was queued under. It
// runs on a timer goroutine and may block; it is never called with an empty
// batch.
type FlushFunc func(ctx context.Context, identity, tag string, items []Item)

// IdleFunc is called when an identity has enqueued nothing for the idle
// window since its last Enqueue.
type IdleFunc func(ctx context.Context, identity string)

// Options configures an Aggregator.
type Options struct {
	Quiet   time.Duration
	Idle    time.Duration
	OnFlush FlushFunc
	OnIdle  IdleFunc
}

type slot struct {
	items  []Item
	tag    string
	gen    uint64
	flushT *time.Timer
	idleT  *time.Timer
}

func (s *slot) stopTimers() {
	if s.flushT != nil {
		s.flushT.Stop()
		s.flushT = nil
	}
	if s.idleT != nil {
		s.idleT.Stop()
		s.idleT = nil
	}
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	slots   map[string]*slot
	quiet   time.Duration
	idle    time.Duration
	onFlush FlushFunc
	onIdle  IdleFunc
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// NewAggregator returns a running Aggregator.
func NewAggregator(opts Options) *Aggregator {
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		slots:   make(map[string]*slot),
		quiet:   opts.Quiet,
		idle:    opts.Idle,
		onFlush: opts.OnFlush,
		onIdle:  opts.OnIdle,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Enqueue appends items to identity's pending batch for tag, cancels the
// previous timers and schedules a fresh flush. Items still pending under a
// different tag are dropped first. It returns the pending count after the
// append, or 0 once the Aggregator is stopped.
func (a *Aggregator) Enqueue(identity, tag string, items ...Item) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return 0
	}
	s := a.slots[identity]
	if s == nil {
		s = &slot{}
		a.slots[identity] = s
	}
	if s.tag != tag {
		s.items = nil
		s.tag = tag
	}
	now := a.now()
	for _, it := range items {
		if it.EnqueuedAt.IsZero() {
			it.EnqueuedAt = now
		}
		s.items = append(s.items, it)
	}
	s.gen++
	gen := s.gen
	s.stopTimers()
	s.flushT = time.AfterFunc(a.quiet, func() { a.fire(identity, gen) })
	if a.idle > 0 && a.onIdle != nil {
		s.idleT = time.AfterFunc(a.idle, func() { a.idleFire(identity, gen) })
	}
	return len(s.items)
}

// FlushNow detaches identity's pending batch and cancels its timers. The
// caller processes the returned items itself; OnFlush is not invoked. A
// batch queued under a different tag is discarded and nil is returned.
func (a *Aggregator) FlushNow(identity, tag string) []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.slots[identity]
	if s == nil {
		return nil
	}
	s.stopTimers()
	delete(a.slots, identity)
	if s.tag != tag {
		return nil
	}
	return s.items
}

// Cancel discards identity's pending batch and timers.
func (a *Aggregator) Cancel(identity string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.slots[identity]; s != nil {
		s.stopTimers()
		delete(a.slots, identity)
	}
}

// Pending returns the number of items waiting for identity.
func (a *Aggregator) Pending(identity string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.slots[identity]; s != nil {
		return len(s.items)
	}
	return 0
}

// Stop cancels every timer, drops pending batches, and waits for in-flight
// callbacks to return.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	for id, s := range a.slots {
		s.stopTimers()
		delete(a.slots, id)
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.cancel()
}

func (a *Aggregator) fire(identity string, gen uint64) {
	a.mu.Lock()
	s := a.slots[identity]
	if a.stopped || s == nil || s.gen != gen || len(s.items) == 0 {
		a.mu.Unlock()
		return
	}
	items, tag := s.items, s.tag
	s.items = nil
	s.flushT = nil
	if s.idleT == nil {
		delete(a.slots, identity)
	}
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	if a.onFlush != nil {
		a.onFlush(a.ctx, identity, tag, items)
	}
}

func (a *Aggregator) idleFire(identity string, gen uint64) {
	a.mu.Lock()
	s := a.slots[identity]
	if a.stopped || s == nil || s.gen != gen {
		a.mu.Unlock()
		return
	}
	s.idleT = nil
	if len(s.items) == 0 && s.flushT == nil {
		delete(a.slots, identity)
	}
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	a.onIdle(a.ctx, identity)
}

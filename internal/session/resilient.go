package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// Resilient retries each operation once after RetryDelay. When Get still
// fails it logs and reports "no session"; a corrupt record is cleared.
// Set and Clear return the final error so callers can apologize.
type Resilient struct {
	Next       Store
	RetryDelay time.Duration
}

// NewResilient wraps next with the default 50ms retry delay.
func NewResilient(next Store) *Resilient {
	return &Resilient{Next: next, RetryDelay: 50 * time.Millisecond}
}

// Get implements Store.
func (r *Resilient) Get(ctx context.Context, identity string) (*domain.Session, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var s *domain.Session
		s, err = r.Next.Get(ctx, identity)
		if err == nil {
			return s, nil
		}
		if errors.Is(err, ErrCorrupt) {
			zerolog.Ctx(ctx).Error().Err(err).Str("identity", identity).Msg("discarding corrupt session")
			_ = r.Next.Clear(ctx, identity)
			return nil, nil
		}
		if !r.wait(ctx, attempt) {
			break
		}
	}
	zerolog.Ctx(ctx).Warn().Err(err).Str("identity", identity).Msg("session store unavailable; continuing without session")
	return nil, nil
}

// Set implements Store.
func (r *Resilient) Set(ctx context.Context, identity string, s *domain.Session, ttl time.Duration) error {
	return r.retry(ctx, func() error { return r.Next.Set(ctx, identity, s, ttl) })
}

// Clear implements Store.
func (r *Resilient) Clear(ctx context.Context, identity string) error {
	return r.retry(ctx, func() error { return r.Next.Clear(ctx, identity) })
}

func (r *Resilient) retry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || errors.Is(err, domain.ErrInvalidStep) || errors.Is(err, domain.ErrUnknownMode) {
		return err
	}
	if !r.wait(ctx, 0) {
		return err
	}
	return op()
}

// wait sleeps before the next attempt. It returns false when no further
// attempt should be made.
func (r *Resilient) wait(ctx context.Context, attempt int) bool {
	if attempt > 0 {
		return false
	}
	if r.RetryDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(r.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

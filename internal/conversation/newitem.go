package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/intent"
	"github.com/tbourn/go-catalog-bot/internal/media"
	"github.com/tbourn/go-catalog-bot/internal/observability"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// awaitingMedia handles new_item/awaiting_media: media is queued for the
// debounced upload, done/skip finalizes the draft, other text re-prompts.
func (e *Engine) awaitingMedia(ctx context.Context, in *Input) (Outcome, error) {
	f, err := flowOf[*domain.NewItemFlow](in)
	if err != nil {
		return Outcome{}, err
	}
	if len(in.Event.Media) > 0 {
		items := make([]media.Item, len(in.Event.Media))
		for i, it := range in.Event.Media {
			if it.EnqueuedAt.IsZero() {
				it.EnqueuedAt = in.Event.ReceivedAt
			}
			items[i] = it
		}
		// Acknowledge only the first event of a batch window.
		if n := e.agg.Enqueue(in.Event.Identity, f.SubjectID, items...); n == len(items) {
			return Stay(transport.Textf(msgReceived, n)), nil
		}
		return Stay(), nil
	}
	switch in.Escape {
	case intent.EscapeDone, intent.EscapeSkip:
		return e.finalizeItem(ctx, in, f)
	default:
		return Stay(transport.Text(msgMediaReprompt)), nil
	}
}

// finalizeItem drains the pending batch inline, attaches it, and closes the
// flow with the draft summary.
func (e *Engine) finalizeItem(ctx context.Context, in *Input, f *domain.NewItemFlow) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	var replies []transport.Reply
	if pending := e.agg.FlushNow(in.Event.Identity, f.SubjectID); len(pending) > 0 {
		uploaded, failed, err := e.hostBatch(ctx, in.Event.Identity, b.ID, f, pending)
		if err != nil {
			return Outcome{}, commitErr("attach media", err)
		}
		replies = append(replies, transport.Text(uploadReport(uploaded, failed)))
	}
	it, err := e.deps.Catalog.GetItem(ctx, b.ID, f.SubjectID)
	if err != nil {
		return Outcome{}, commitErr("load draft", err)
	}
	replies = append(replies, transport.Text(draftSummary(it, len(f.PendingMedia))))
	return Finish(replies...), nil
}

// hostBatch uploads items and attaches the successes to f's item, appending
// them to f.PendingMedia. failed holds 1-based positions within items.
func (e *Engine) hostBatch(ctx context.Context, identity, brokerID string, f *domain.NewItemFlow, items []media.Item) (uploaded int, failed []int, err error) {
	it, err := e.deps.Catalog.GetItem(ctx, brokerID, f.SubjectID)
	if err != nil {
		return 0, nil, err
	}
	if e.deps.Hosting == nil {
		return 0, nil, errors.New("no media host configured")
	}
	results := e.deps.Hosting.Store(ctx, identity, items)

	base := len(f.PendingMedia)
	refs := make([]domain.MediaRef, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			zerolog.Ctx(ctx).Warn().Err(r.Err).Int("position", i+1).Msg("media upload failed")
			failed = append(failed, i+1)
			continue
		}
		refs = append(refs, domain.MediaRef{URL: r.URL, Kind: r.Item.Kind(), Order: base + len(refs) + 1})
	}
	observability.RecordMediaItems("ok", len(refs))
	observability.RecordMediaItems("error", len(failed))

	if len(refs) > 0 {
		if err := e.deps.Catalog.AttachMedia(ctx, it.ID, refs); err != nil {
			return 0, failed, fmt.Errorf("attach media: %w", err)
		}
	}
	f.PendingMedia = append(f.PendingMedia, refs...)

	switch {
	case len(failed) == 0:
		observability.RecordFlush("hosted")
	case len(refs) == 0:
		observability.RecordFlush("failed")
	default:
		observability.RecordFlush("partial")
	}
	return len(refs), failed, nil
}

// flushMedia is the aggregator's timer callback. The batch is discarded when
// the identity has left new_item/awaiting_media for subjectID since it was
// queued.
func (e *Engine) flushMedia(ctx context.Context, identity, subjectID string, items []media.Item) {
	ctx, span := e.tracer.Start(ctx, "conversation.flushMedia",
		trace.WithAttributes(attribute.Int("media.count", len(items)), attribute.String("item.subject", subjectID)))
	defer span.End()

	unlock := e.locks.Lock(identity)
	defer unlock()

	lg := zerolog.Ctx(ctx).With().Str("identity", identity).Int("items", len(items)).Logger()
	ctx = lg.WithContext(ctx)

	sess, err := e.deps.Sessions.Get(ctx, identity)
	if err != nil {
		lg.Warn().Err(err).Msg("session load failed; discarding media batch")
		observability.RecordFlush("discarded")
		return
	}
	var f *domain.NewItemFlow
	if sess != nil {
		f, _ = sess.Flow.(*domain.NewItemFlow)
	}
	if f == nil || f.Step != domain.StepAwaitingMedia {
		lg.Debug().Str("mode", string(sess.Mode())).Msg("no item awaiting media; discarding batch")
		observability.RecordFlush("discarded")
		return
	}
	if f.SubjectID != subjectID {
		lg.Debug().Str("queued_for", subjectID).Str("awaiting", f.SubjectID).Msg("batch queued for another item; discarding")
		observability.RecordFlush("discarded")
		return
	}

	hctx, cancel := context.WithTimeout(ctx, e.opts.ExternalTimeout)
	defer cancel()

	b, err := e.deps.Catalog.GetBroker(hctx, identity)
	if err == nil {
		var uploaded int
		var failed []int
		uploaded, failed, err = e.hostBatch(hctx, identity, b.ID, f, items)
		if err == nil {
			sess.Flow = f
			sess.UpdatedAt = e.now()
			if err := e.deps.Sessions.Set(ctx, identity, sess, e.opts.SessionTTL); err != nil {
				lg.Error().Err(err).Msg("session write after media flush failed")
			}
			e.notify(ctx, identity, transport.Text(uploadReport(uploaded, failed)))
			return
		}
	}

	span.RecordError(err)
	in := &Input{Event: Event{Identity: identity}, Session: sess}
	replies, _ := e.fail(ctx, in, fmt.Errorf("media flush: %w", err))
	for _, r := range replies {
		e.notify(ctx, identity, r)
	}
}

// nudge reminds an identity still collecting media to finish.
func (e *Engine) nudge(ctx context.Context, identity string) {
	unlock := e.locks.Lock(identity)
	defer unlock()

	sess, err := e.deps.Sessions.Get(ctx, identity)
	if err != nil || sess.Mode() != domain.ModeNewItem {
		return
	}
	e.notify(ctx, identity, transport.Text(msgNudge))
}

func (e *Engine) notify(ctx context.Context, identity string, r transport.Reply) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ExternalTimeout)
	defer cancel()
	if err := e.deps.Sender.Send(ctx, identity, r); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("identity", identity).Msg("async reply failed")
	}
}

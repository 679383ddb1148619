// Package gateway is the inbound edge: it normalizes transport webhooks into
// conversation events, drops redeliveries via the dedup ledger, and hands
// the rest to the conversation engine.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-catalog-bot/internal/conversation"
	"github.com/tbourn/go-catalog-bot/internal/dedup"
	"github.com/tbourn/go-catalog-bot/internal/observability"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// ErrUnknownTransport is returned for a RawEvent whose transport has no
// normalizer.
var ErrUnknownTransport = errors.New("gateway: unknown transport")

// Handler processes one normalized event. *conversation.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) ([]transport.Reply, error)
}

// Gateway wires normalizers, the dedup ledger and the engine.
type Gateway struct {
	ledger      dedup.Ledger
	engine      Handler
	sender      transport.Sender
	normalizers map[string]Normalizer
	tracer      trace.Tracer
}

// New returns a Gateway for the Twilio and Meta transports. sender delivers
// replies that are not returned in a webhook response; nil logs them.
func New(ledger dedup.Ledger, engine Handler, sender transport.Sender) *Gateway {
	if sender == nil {
		sender = transport.LogSender{}
	}
	return &Gateway{
		ledger: ledger,
		engine: engine,
		sender: sender,
		normalizers: map[string]Normalizer{
			TransportTwilio: TwilioNormalizer{},
			TransportMeta:   MetaNormalizer{},
		},
		tracer: otel.Tracer("github.com/tbourn/go-catalog-bot/internal/gateway"),
	}
}

// HandleInbound normalizes raw and processes each event that has not been
// seen before. Replies are returned addressed, since one Meta delivery can
// batch several senders. Ledger failures are logged and the event is
// processed anyway.
func (g *Gateway) HandleInbound(ctx context.Context, raw RawEvent) ([]transport.Outbound, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.HandleInbound",
		trace.WithAttributes(attribute.String("chat.transport", raw.Transport)))
	defer span.End()

	n, ok := g.normalizers[raw.Transport]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, raw.Transport)
	}
	events, err := n.Normalize(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "normalize")
		return nil, err
	}

	var out []transport.Outbound
	for _, ev := range events {
		lg := zerolog.Ctx(ctx).With().
			Str("message_id", ev.MessageID).
			Str("transport", ev.Transport).
			Logger()

		if g.ledger != nil {
			seen, err := g.ledger.SeenAndMark(ctx, ev.MessageID)
			switch {
			case err != nil:
				lg.Warn().Err(err).Msg("dedup ledger unavailable; processing event")
			case seen:
				observability.RecordDuplicate()
				lg.Debug().Msg("duplicate delivery dropped")
				continue
			}
		}

		kind := "text"
		if len(ev.Media) > 0 {
			kind = "media"
		}
		observability.RecordInbound(ev.Transport, kind)

		replies, err := g.engine.Handle(lg.WithContext(ctx), ev)
		if err != nil {
			lg.Error().Err(err).Msg("event handled with errors")
		}
		for _, r := range replies {
			out = append(out, transport.Outbound{To: ev.Identity, Reply: r})
		}
	}
	span.SetAttributes(attribute.Int("chat.events", len(events)), attribute.Int("chat.replies", len(out)))
	return out, nil
}

// Deliver sends replies through the gateway's sender, grouped per recipient
// in their original order.
func (g *Gateway) Deliver(ctx context.Context, out []transport.Outbound) error {
	var errs []error
	for i := 0; i < len(out); {
		j := i
		var batch []transport.Reply
		for j < len(out) && out[j].To == out[i].To {
			batch = append(batch, out[j].Reply)
			j++
		}
		if err := transport.SendAll(ctx, g.sender, out[i].To, batch); err != nil {
			errs = append(errs, err)
		}
		i = j
	}
	return errors.Join(errs...)
}

// Replies drops the addressing. A Twilio delivery has a single sender.
func Replies(out []transport.Outbound) []transport.Reply {
	rs := make([]transport.Reply, len(out))
	for i, o := range out {
		rs[i] = o.Reply
	}
	return rs
}

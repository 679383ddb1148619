// Package transport describes outbound messages and the senders that deliver
// them over WhatsApp through Twilio or the Meta Cloud API.
//
// A Reply is transport-neutral. Synchronous replies to a Twilio webhook are
// rendered as TwiML in the HTTP response; everything else (Meta replies and
// asynchronous notices such as media upload reports) goes through a Sender.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Reply is one outbound message. MediaURL is optional; Text doubles as the
// caption when both are set.
type Reply struct {
	Text      string `json:"text,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaKind string `json:"media_kind,omitempty"`
}

// Text returns a text-only reply.
func Text(s string) Reply { return Reply{Text: s} }

// Textf returns a formatted text-only reply.
func Textf(format string, args ...any) Reply { return Reply{Text: fmt.Sprintf(format, args...)} }

// Media returns a reply carrying an attachment.
func Media(caption, url, kind string) Reply {
	return Reply{Text: caption, MediaURL: url, MediaKind: kind}
}

// Outbound addresses a Reply to an identity.
type Outbound struct {
	To    string `json:"to"`
	Reply Reply  `json:"reply"`
}

// Sender delivers a reply to one identity.
type Sender interface {
	Send(ctx context.Context, to string, r Reply) error
}

// SendAll delivers every reply in order and joins the errors. Later replies
// are still attempted after a failure.
func SendAll(ctx context.Context, s Sender, to string, replies []Reply) error {
	var errs []error
	for _, r := range replies {
		if err := s.Send(ctx, to, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSender writes replies to the context logger instead of delivering them.
// It is the default when no transport credentials are configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, to string, r Reply) error {
	zerolog.Ctx(ctx).Info().
		Str("to", to).
		Str("text", r.Text).
		Str("media_url", r.MediaURL).
		Msg("outbound message (log transport)")
	return nil
}

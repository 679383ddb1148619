package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-catalog-bot/internal/conversation"
	"github.com/tbourn/go-catalog-bot/internal/media"
	"github.com/tbourn/go-catalog-bot/internal/utils"
)

// Transport names carried on events and metrics.
const (
	TransportTwilio = "twilio"
	TransportMeta   = "meta"
)

// ErrMalformed is returned when a webhook payload cannot be normalized.
var ErrMalformed = errors.New("gateway: malformed inbound payload")

// RawEvent is a webhook delivery as received. Twilio posts a form, Meta
// posts JSON.
type RawEvent struct {
	Transport  string
	Form       url.Values
	Body       []byte
	ReceivedAt time.Time
}

// Normalizer turns one webhook delivery into zero or more events.
type Normalizer interface {
	Normalize(raw RawEvent) ([]conversation.Event, error)
}

const whatsappPrefix = "whatsapp:"

// NormalizeIdentity reduces a WhatsApp address to E.164 form:
// "whatsapp:+91 98000-00001" and "919800000001" both become "+919800000001".
func NormalizeIdentity(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(whatsappPrefix) && strings.EqualFold(s[:len(whatsappPrefix)], whatsappPrefix) {
		s = s[len(whatsappPrefix):]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	if s != "" && isDigits(s) {
		s = "+" + s
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// maxTwilioMedia is the most attachments Twilio puts on one message.
const maxTwilioMedia = 10

// TwilioNormalizer reads Twilio's WhatsApp webhook form.
type TwilioNormalizer struct{}

// Normalize implements Normalizer.
func (TwilioNormalizer) Normalize(raw RawEvent) ([]conversation.Event, error) {
	f := raw.Form
	from := NormalizeIdentity(f.Get("From"))
	if from == "" {
		return nil, fmt.Errorf("%w: missing From", ErrMalformed)
	}
	ev := conversation.Event{
		MessageID:  f.Get("MessageSid"),
		Identity:   from,
		Text:       strings.TrimSpace(f.Get("Body")),
		Transport:  TransportTwilio,
		ReceivedAt: received(raw),
	}
	n := min(utils.AtoiDefault(f.Get("NumMedia"), 0), maxTwilioMedia)
	for i := 0; i < n; i++ {
		u := f.Get(fmt.Sprintf("MediaUrl%d", i))
		if u == "" {
			continue
		}
		ev.Media = append(ev.Media, media.Item{
			ID:          fmt.Sprintf("%s-%d", ev.MessageID, i),
			URL:         u,
			ContentType: f.Get(fmt.Sprintf("MediaContentType%d", i)),
			EnqueuedAt:  ev.ReceivedAt,
		})
	}
	return []conversation.Event{ev}, nil
}

// MetaNormalizer reads the WhatsApp Cloud API webhook JSON.
type MetaNormalizer struct{}

type metaPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []metaInbound `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaAttachment struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type metaInbound struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image       *metaAttachment `json:"image"`
	Video       *metaAttachment `json:"video"`
	Document    *metaAttachment `json:"document"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button"`
}

// Normalize implements Normalizer. Status callbacks carry no messages and
// yield no events.
func (MetaNormalizer) Normalize(raw RawEvent) ([]conversation.Event, error) {
	var p metaPayload
	if err := json.Unmarshal(raw.Body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var out []conversation.Event
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				from := NormalizeIdentity(m.From)
				if from == "" {
					continue
				}
				ev := conversation.Event{
					MessageID:  m.ID,
					Identity:   from,
					Transport:  TransportMeta,
					ReceivedAt: received(raw),
				}
				if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && sec > 0 {
					ev.ReceivedAt = time.Unix(sec, 0).UTC()
				}
				switch {
				case m.Text != nil:
					ev.Text = m.Text.Body
				case m.Interactive != nil && m.Interactive.ButtonReply != nil:
					ev.Text = m.Interactive.ButtonReply.Title
				case m.Button != nil:
					ev.Text = m.Button.Text
				}
				for _, a := range []*metaAttachment{m.Image, m.Video, m.Document} {
					if a == nil || a.ID == "" {
						continue
					}
					ev.Media = append(ev.Media, media.Item{
						ID:          a.ID,
						ContentType: a.MimeType,
						EnqueuedAt:  ev.ReceivedAt,
					})
					if ev.Text == "" {
						ev.Text = a.Caption
					}
				}
				ev.Text = strings.TrimSpace(ev.Text)
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

func received(raw RawEvent) time.Time {
	if raw.ReceivedAt.IsZero() {
		return time.Now().UTC()
	}
	return raw.ReceivedAt
}

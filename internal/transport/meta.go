package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MetaSender posts messages to the WhatsApp Cloud API.
type MetaSender struct {
	Token         string
	PhoneNumberID string
	Client        *http.Client
	BaseURL       string // default https://graph.facebook.com/v18.0
}

type metaText struct {
	Body string `json:"body"`
}

type metaMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type metaMessage struct {
	MessagingProduct string     `json:"messaging_product"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *metaText  `json:"text,omitempty"`
	Image            *metaMedia `json:"image,omitempty"`
	Video            *metaMedia `json:"video,omitempty"`
}

// Send implements Sender.
func (s *MetaSender) Send(ctx context.Context, to string, r Reply) error {
	msg := metaMessage{MessagingProduct: "whatsapp", To: strings.TrimPrefix(to, "+")}
	switch {
	case r.MediaURL != "" && r.MediaKind == "video":
		msg.Type = "video"
		msg.Video = &metaMedia{Link: r.MediaURL, Caption: r.Text}
	case r.MediaURL != "":
		msg.Type = "image"
		msg.Image = &metaMedia{Link: r.MediaURL, Caption: r.Text}
	default:
		msg.Type = "text"
		msg.Text = &metaText{Body: r.Text}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = "https://graph.facebook.com/v18.0"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/"+s.PhoneNumberID+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", "application/json")

	c := s.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("meta: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("meta: send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

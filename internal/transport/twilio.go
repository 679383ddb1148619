package transport

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TwilioSender posts messages to the Twilio REST API.
type TwilioSender struct {
	AccountSID string
	AuthToken  string
	From       string
	Client     *http.Client
	BaseURL    string // default https://api.twilio.com
}

// whatsappAddr prefixes a phone number with the channel scheme Twilio expects.
func whatsappAddr(n string) string {
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + n
}

// Send implements Sender.
func (s *TwilioSender) Send(ctx context.Context, to string, r Reply) error {
	if s.From == "" {
		return fmt.Errorf("twilio: from number not configured")
	}
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = "https://api.twilio.com"
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", base, url.PathEscape(s.AccountSID))

	form := url.Values{}
	form.Set("From", whatsappAddr(s.From))
	form.Set("To", whatsappAddr(to))
	if r.Text != "" {
		form.Set("Body", r.Text)
	}
	if r.MediaURL != "" {
		form.Set("MediaUrl", r.MediaURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.AccountSID, s.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c := s.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio: send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type twimlResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Messages []twimlMessage `xml:"Message"`
}

type twimlMessage struct {
	Body  string `xml:"Body,omitempty"`
	Media string `xml:"Media,omitempty"`
}

// RenderTwiML renders replies as a TwiML messaging response. An empty slice
// renders an empty <Response/>, which Twilio treats as "no reply".
func RenderTwiML(replies []Reply) ([]byte, error) {
	doc := twimlResponse{}
	for _, r := range replies {
		doc.Messages = append(doc.Messages, twimlMessage{Body: r.Text, Media: r.MediaURL})
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

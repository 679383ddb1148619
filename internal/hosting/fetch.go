// Package hosting moves inbound attachments from the messaging transport to
// permanent storage: a Fetcher downloads the transient media, an Uploader
// stores it and returns a public URL, and Pipeline runs both for a batch.
package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-catalog-bot/internal/media"
)

// MaxMediaBytes caps a single download.
const MaxMediaBytes = 16 << 20

// ErrTooLarge is returned when a download exceeds MaxMediaBytes.
var ErrTooLarge = errors.New("hosting: media exceeds size limit")

// RawMedia is downloaded attachment content.
type RawMedia struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads one attachment.
type Fetcher interface {
	Fetch(ctx context.Context, it media.Item) (RawMedia, error)
}

// TwilioMediaHosts are the hosts Twilio serves inbound media from. Twilio
// credentials are only ever sent to these.
var TwilioMediaHosts = []string{"api.twilio.com"}

// HTTPFetcher downloads it.URL. Basic auth is attached only when the URL's
// host is one of CredentialHosts or a subdomain of one; any other host is
// fetched anonymously.
type HTTPFetcher struct {
	Client          *http.Client
	Username        string
	Password        string
	CredentialHosts []string
}

// NewTwilioFetcher returns an HTTPFetcher authenticated for Twilio media.
func NewTwilioFetcher(accountSID, authToken string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:          &http.Client{Timeout: timeout},
		Username:        accountSID,
		Password:        authToken,
		CredentialHosts: TwilioMediaHosts,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, it media.Item) (RawMedia, error) {
	if it.URL == "" {
		return RawMedia{}, fmt.Errorf("hosting: item %q has no url", it.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, it.URL, nil)
	if err != nil {
		return RawMedia{}, err
	}
	if f.Username != "" && f.trusted(req.URL.Hostname()) {
		req.SetBasicAuth(f.Username, f.Password)
	}
	return download(client(f.Client), req, it.ContentType)
}

func (f *HTTPFetcher) trusted(host string) bool {
	host = strings.ToLower(host)
	for _, h := range f.CredentialHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// MetaFetcher resolves a Graph API media id to its short-lived URL and
// downloads it with the bearer token.
type MetaFetcher struct {
	Client  *http.Client
	Token   string
	BaseURL string // default https://graph.facebook.com/v18.0
}

// Fetch implements Fetcher.
func (f *MetaFetcher) Fetch(ctx context.Context, it media.Item) (RawMedia, error) {
	c := client(f.Client)
	url := it.URL
	if url == "" {
		if it.ID == "" {
			return RawMedia{}, errors.New("hosting: meta item has neither id nor url")
		}
		base := strings.TrimRight(f.BaseURL, "/")
		if base == "" {
			base = "https://graph.facebook.com/v18.0"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+it.ID, nil)
		if err != nil {
			return RawMedia{}, err
		}
		req.Header.Set("Authorization", "Bearer "+f.Token)
		resp, err := c.Do(req)
		if err != nil {
			return RawMedia{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return RawMedia{}, fmt.Errorf("hosting: resolve media %s: status %d", it.ID, resp.StatusCode)
		}
		var meta struct {
			URL      string `json:"url"`
			MimeType string `json:"mime_type"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&meta); err != nil {
			return RawMedia{}, fmt.Errorf("hosting: decode media %s: %w", it.ID, err)
		}
		url = meta.URL
		if it.ContentType == "" {
			it.ContentType = meta.MimeType
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RawMedia{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)
	return download(c, req, it.ContentType)
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func download(c *http.Client, req *http.Request, fallbackType string) (RawMedia, error) {
	resp, err := c.Do(req)
	if err != nil {
		return RawMedia{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RawMedia{}, fmt.Errorf("hosting: download %s: status %d", req.URL.Redacted(), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return RawMedia{}, err
	}
	if len(data) > MaxMediaBytes {
		return RawMedia{}, ErrTooLarge
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = fallbackType
	}
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return RawMedia{Data: data, ContentType: ct}, nil
}

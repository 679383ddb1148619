package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-catalog-bot/internal/http/middleware"
)

// Signature headers set by the providers on every webhook delivery.
const (
	HeaderTwilioSignature = "X-Twilio-Signature"
	HeaderMetaSignature   = "X-Hub-Signature-256"
)

const metaSignaturePrefix = "sha256="

// TwilioSignature rejects form posts whose X-Twilio-Signature does not match
// SignTwilio over the request URL and body parameters. publicBaseURL, when
// set, replaces the scheme and host the server sees, for deployments behind
// a proxy. An empty authToken rejects every request.
func TwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderTwilioSignature)
		if authToken == "" || got == "" {
			rejectSignature(c, "twilio", "missing signature")
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form body")
			return
		}
		want := SignTwilio(authToken, requestURL(c.Request, publicBaseURL), c.Request.PostForm)
		if !hmac.Equal([]byte(got), []byte(want)) {
			rejectSignature(c, "twilio", "signature mismatch")
			return
		}
		c.Next()
	}
}

// SignTwilio computes Twilio's request signature: base64 HMAC-SHA1 keyed by
// the auth token over the full URL followed by every POST parameter name and
// value, sorted by name.
func SignTwilio(authToken, fullURL string, form url.Values) string {
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range slices.Sorted(maps.Keys(form)) {
		for _, v := range slices.Sorted(slices.Values(form[k])) {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// MetaSignature rejects deliveries whose X-Hub-Signature-256 does not match
// SignMeta over the raw body. The body is restored for the handler. An empty
// appSecret rejects every request.
func MetaSignature(appSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderMetaSignature)
		if appSecret == "" || !strings.HasPrefix(got, metaSignaturePrefix) {
			rejectSignature(c, "meta", "missing signature")
			return
		}
		body, err := c.GetRawData()
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		if !hmac.Equal([]byte(strings.ToLower(got)), []byte(SignMeta(appSecret, body))) {
			rejectSignature(c, "meta", "signature mismatch")
			return
		}
		c.Next()
	}
}

// SignMeta computes the X-Hub-Signature-256 value for body.
func SignMeta(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return metaSignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// requestURL rebuilds the URL the provider posted to.
func requestURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		first, _, _ := strings.Cut(p, ",")
		scheme = strings.TrimSpace(first)
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func rejectSignature(c *gin.Context, provider, reason string) {
	middleware.LoggerFrom(c).Warn().
		Str("provider", provider).
		Str("reason", reason).
		Str("ip", c.ClientIP()).
		Msg("webhook signature rejected")
	fail(c, http.StatusForbidden, ErrCodeForbidden, "invalid webhook signature")
}

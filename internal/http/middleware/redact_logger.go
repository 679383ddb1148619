package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders adds header names whose values are replaced wholesale; the
// credential and webhook signature headers are always masked. MaskParams
// adds query parameter names masked the same way (hub.verify_token always
// is).
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

var (
	uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	// Media and message ids from the transports: Twilio SIDs and Meta wamids.
	sidRE   = regexp.MustCompile(`\b(?:SM|MM|ME|AC)[0-9a-fA-F]{32}\b|\bwamid\.[A-Za-z0-9_=-]+`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Broker identities are E.164 numbers, optionally behind "whatsapp:".
	phoneRE = regexp.MustCompile(`(?i)(?:whatsapp:)?\+?\b(?:\d[ .\-()]?){8,15}\d\b`)
)

// redact scrubs identifiers from s. Ids go first so the phone pattern does
// not eat their digit runs.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = sidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger emits one access log line per request with phone numbers,
// emails and transport ids scrubbed from the query string and headers.
// Bodies are never logged. 4xx logs at warn and 5xx at error.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet(opts.MaskHeaders,
		"authorization", "cookie", "set-cookie", "x-twilio-signature", "x-hub-signature-256")
	maskParams := lowerSet(opts.MaskParams, "hub.verify_token")

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := scrubQuery(c.Request.URL.RawQuery, maskParams)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.
			Str("request_id", c.Writer.Header().Get(requestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

func scrubQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return redact(raw)
	}
	for k, vv := range q {
		if _, ok := mask[strings.ToLower(k)]; ok {
			q[k] = []string{"[REDACTED]"}
			continue
		}
		for i, v := range vv {
			vv[i] = redact(v)
		}
	}
	out, err := url.QueryUnescape(q.Encode())
	if err != nil {
		return q.Encode()
	}
	return out
}

func lowerSet(extra []string, base ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m[s] = struct{}{}
		}
	}
	return m
}

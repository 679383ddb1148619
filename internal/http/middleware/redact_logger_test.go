package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"whatsapp:+919800000001":                      "[REDACTED:phone]",
		"+1 415-555-0100":                             "[REDACTED:phone]",
		"broker@example.com":                          "[REDACTED:email]",
		"SM0123456789abcdef0123456789abcdef":          "[REDACTED:id]",
		"wamid.HBgLOTE5ODAwMDAwMDAxFQIAERgSQTE=":      "[REDACTED:id]",
		"123e4567-e89b-12d3-a456-426614174000":        "[REDACTED:id]",
		"page=2":                                      "page=2",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Fatalf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/webhooks/meta", func(c *gin.Context) { c.String(http.StatusOK, "challenge") })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/meta?hub.mode=subscribe&hub.verify_token=s3cret&from=%2B919800000001", nil)
	req.Header.Set("X-Twilio-Signature", "sig")
	req.Header.Set("X-Api-Key", "key")
	req.Header.Set("X-Forwarded-For", "broker@example.com")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leaked := range []string{"s3cret", "919800000001", "broker@example.com", `"sig"`, `"key"`} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %q: %s", leaked, out)
		}
	}
	for _, want := range []string{`"path":"/webhooks/meta"`, "hub.mode=subscribe", `"level":"info"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q: %s", want, out)
		}
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx should log at error: %s", buf.String())
	}
}

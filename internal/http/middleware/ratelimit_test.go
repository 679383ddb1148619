package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func formRequest(from string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio",
		strings.NewReader(url.Values{"From": {from}, "Body": {"hi"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = net.JoinHostPort("54.172.60.1", "443")
	return req
}

func TestKeyBySenderOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = formRequest("whatsapp:+919800000001")
	if key := KeyBySenderOrIP()(c); key != "wa:+919800000001" {
		t.Fatalf("expected sender key, got %q", key)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(`{"entry":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c.Request = req
	if key := KeyBySenderOrIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("expected ip key, got %q", key)
	}
}

func TestRateLimiter_PerSenderBuckets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1, KeyBySenderOrIP())

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.POST("/webhooks/twilio", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(from string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, formRequest(from))
		return w
	}

	if w := send("whatsapp:+911"); w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}
	w := send("whatsapp:+911")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"rate_limited"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	// Same Twilio source IP, different sender: own bucket.
	if w := send("whatsapp:+912"); w.Code != http.StatusOK {
		t.Fatalf("other sender = %d", w.Code)
	}
}

func TestRateLimiter_BurstCoercionAndEviction(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyBySenderOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}

	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	rl.gcEvery = 3

	first := rl.limiter("k1")
	if rl.limiter("k1") != first {
		t.Fatalf("expected the same bucket on reuse")
	}

	now = now.Add(rl.ttl)
	// This lookup trips GC before touching k1, so k1 is rebuilt.
	if rl.limiter("k1") == first {
		t.Fatalf("expected idle bucket to be evicted")
	}
	if len(rl.visitors) != 1 {
		t.Fatalf("visitors = %d", len(rl.visitors))
	}
}

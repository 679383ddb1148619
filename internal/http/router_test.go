package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-catalog-bot/internal/config"
	"github.com/tbourn/go-catalog-bot/internal/gateway"
	"github.com/tbourn/go-catalog-bot/internal/http/handlers"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// --- tiny fakes for the handler dependencies ---

type fakeInbound struct{ raws []gateway.RawEvent }

func (f *fakeInbound) HandleInbound(_ context.Context, raw gateway.RawEvent) ([]transport.Outbound, error) {
	f.raws = append(f.raws, raw)
	return []transport.Outbound{{To: "+919800000001", Reply: transport.Text("ok")}}, nil
}

func (f *fakeInbound) Deliver(context.Context, []transport.Outbound) error { return nil }

type fakeResetter struct{}

func (fakeResetter) StartCredentialReset(context.Context, string) error { return nil }

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		Transport:   "log",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Media:       config.MediaConfig{Backend: "supabase"},
	}
}

func newEngine(t *testing.T, cfg config.Config) (*gin.Engine, *fakeInbound) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	in := &fakeInbound{}
	RegisterRoutes(r, handlers.New(in, fakeResetter{}, handlers.Options{MetaVerifyToken: "tok"}), cfg)
	return r, in
}

func postForm(r *gin.Engine, path string, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(handlers.HeaderTwilioSignature, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newEngine(t, baseConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing request id or security headers: %v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_Webhooks(t *testing.T) {
	r, in := newEngine(t, baseConfig())

	form := url.Values{"From": {"whatsapp:+919800000001"}, "Body": {"help"}, "MessageSid": {"SM1"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Body>ok</Body>") {
		t.Fatalf("twilio webhook: %d %s", w.Code, w.Body.String())
	}
	// The rate limiter parsed the form first; the handler must still see it.
	if len(in.raws) != 1 || in.raws[0].Form.Get("Body") != "help" {
		t.Fatalf("form lost: %+v", in.raws)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/webhooks/meta?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=42", nil))
	if w.Code != http.StatusOK || w.Body.String() != "42" {
		t.Fatalf("meta verify: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/brokers/reset-credential", strings.NewReader(`{"phone":"+919800000001"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("reset credential: %d", w.Code)
	}
}

func TestRegisterRoutes_TwilioWebhooksRequireSignature(t *testing.T) {
	cfg := baseConfig()
	cfg.Transport = "twilio"
	cfg.Twilio = config.TwilioConfig{AccountSID: "AC1", AuthToken: "tok3n", From: "+14155238886"}
	cfg.PublicBaseURL = "https://bot.example.com"

	gin.SetMode(gin.TestMode)
	r := gin.New()
	broker, customer := &fakeInbound{}, &fakeInbound{}
	RegisterRoutes(r, handlers.New(broker, fakeResetter{}, handlers.Options{Customer: customer}), cfg)

	form := url.Values{"From": {"whatsapp:+919800000001"}, "Body": {"delete 3"}, "MessageSid": {"SM1"}}
	if w := postForm(r, "/webhooks/twilio", form, ""); w.Code != http.StatusForbidden {
		t.Fatalf("unsigned = %d", w.Code)
	}
	if w := postForm(r, "/webhooks/twilio", form, handlers.SignTwilio("wrong", "https://bot.example.com/webhooks/twilio", form)); w.Code != http.StatusForbidden {
		t.Fatalf("bad signature = %d", w.Code)
	}
	if len(broker.raws) != 0 {
		t.Fatalf("rejected requests reached the bot: %+v", broker.raws)
	}

	sig := handlers.SignTwilio("tok3n", "https://bot.example.com/webhooks/twilio", form)
	if w := postForm(r, "/webhooks/twilio", form, sig); w.Code != http.StatusOK {
		t.Fatalf("signed = %d %s", w.Code, w.Body.String())
	}
	if len(broker.raws) != 1 {
		t.Fatalf("signed request not handled")
	}

	form = url.Values{"From": {"whatsapp:+919800000009"}, "Body": {"list"}, "MessageSid": {"SM2"}}
	if w := postForm(r, "/webhooks/twilio/customer", form, ""); w.Code != http.StatusForbidden {
		t.Fatalf("unsigned customer = %d", w.Code)
	}
	sig = handlers.SignTwilio("tok3n", "https://bot.example.com/webhooks/twilio/customer", form)
	if w := postForm(r, "/webhooks/twilio/customer", form, sig); w.Code != http.StatusOK {
		t.Fatalf("signed customer = %d %s", w.Code, w.Body.String())
	}
	if len(customer.raws) != 1 || len(broker.raws) != 1 {
		t.Fatalf("customer=%d broker=%d", len(customer.raws), len(broker.raws))
	}
}

func TestRegisterRoutes_MetaWebhookRequiresSignature(t *testing.T) {
	cfg := baseConfig()
	cfg.Transport = "meta"
	cfg.Meta.AppSecret = "app-secret"
	r, in := newEngine(t, cfg)

	body := `{"object":"whatsapp_business_account","entry":[]}`
	post := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if sig != "" {
			req.Header.Set(handlers.HeaderMetaSignature, sig)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := post(""); got != http.StatusForbidden {
		t.Fatalf("unsigned = %d", got)
	}
	if got := post(handlers.SignMeta("other", []byte(body))); got != http.StatusForbidden {
		t.Fatalf("bad signature = %d", got)
	}
	if len(in.raws) != 0 {
		t.Fatalf("rejected deliveries reached the bot")
	}
	if got := post(handlers.SignMeta("app-secret", []byte(body))); got != http.StatusOK {
		t.Fatalf("signed = %d", got)
	}
	if len(in.raws) != 1 || string(in.raws[0].Body) != body {
		t.Fatalf("handler body = %+v", in.raws)
	}
}

func TestRegisterRoutes_CustomerWebhookUnconfigured(t *testing.T) {
	r, _ := newEngine(t, baseConfig())
	form := url.Values{"From": {"whatsapp:+919800000009"}, "Body": {"list"}}
	if w := postForm(r, "/webhooks/twilio/customer", form, ""); w.Code != http.StatusNotFound {
		t.Fatalf("customer webhook without a bot = %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimitedPerSender(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, _ := newEngine(t, cfg)

	post := func(from string) int {
		form := url.Values{"From": {from}, "Body": {"hi"}, "MessageSid": {"SM" + from}}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if got := post("whatsapp:+911"); got != http.StatusOK {
		t.Fatalf("first = %d", got)
	}
	if got := post("whatsapp:+911"); got != http.StatusTooManyRequests {
		t.Fatalf("second from same sender = %d", got)
	}
	if got := post("whatsapp:+922"); got != http.StatusOK {
		t.Fatalf("other sender = %d", got)
	}
}

func TestRegisterRoutes_LocalMediaServed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := baseConfig()
	cfg.Media = config.MediaConfig{Backend: "local", Dir: dir}
	r, _ := newEngine(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/a.jpg", nil))
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Fatalf("GET /media/a.jpg = %d %q", w.Code, w.Body.String())
	}
}

func TestPipeline_HSTSOnHTTPS(t *testing.T) {
	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

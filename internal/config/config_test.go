package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Storage
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("STORE_BACKEND", "REDIS")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("DEDUP_TTL", "12h")

	// Conversation timing
	t.Setenv("MEDIA_DEBOUNCE", "2s")
	t.Setenv("MEDIA_IDLE_NUDGE", "0s") // disables the nudge
	t.Setenv("EXTERNAL_TIMEOUT", "7s")
	t.Setenv("CLASSIFIER_URL", "http://nlp:8000/classify")
	t.Setenv("CLASSIFIER_TIMEOUT", "3s")

	// Messaging
	t.Setenv("TRANSPORT", "twilio")
	t.Setenv("TWILIO_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_FROM", "+14155238886")
	t.Setenv("PUBLIC_BASE_URL", "https://bot.example.com/")

	// Media
	t.Setenv("MEDIA_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_KEY", "key")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Storage
	if cfg.DBPath != "db.sqlite" || cfg.StoreBackend != "redis" || cfg.RedisURL != "redis://cache:6379/1" ||
		cfg.SessionTTL != 15*time.Minute || cfg.DedupTTL != 12*time.Hour {
		t.Fatalf("storage fields unexpected: %+v", cfg)
	}

	// Conversation timing
	if cfg.MediaDebounce != 2*time.Second || cfg.MediaIdleNudge != 0 || cfg.ExternalTimeout != 7*time.Second ||
		cfg.ClassifierURL != "http://nlp:8000/classify" || cfg.ClassifierTimeout != 3*time.Second {
		t.Fatalf("timing fields unexpected: %+v", cfg)
	}

	// Messaging + media
	if cfg.Transport != "twilio" || cfg.Twilio.AccountSID != "AC1" || cfg.Twilio.From != "+14155238886" {
		t.Fatalf("transport unexpected: %+v", cfg.Twilio)
	}
	if cfg.PublicBaseURL != "https://bot.example.com" {
		t.Fatalf("public base url should lose its trailing slash, got %q", cfg.PublicBaseURL)
	}
	if cfg.Media.Backend != "supabase" || cfg.Media.SupabaseBucket != "property-media" {
		t.Fatalf("media unexpected: %+v", cfg.Media)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"unknown store backend", map[string]string{"STORE_BACKEND": "etcd"}, "STORE_BACKEND"},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}, "REDIS_URL"},
		{"session ttl non-positive", map[string]string{"SESSION_TTL": "0s"}, "SESSION_TTL"},
		{"media debounce non-positive", map[string]string{"MEDIA_DEBOUNCE": "0s"}, "MEDIA_DEBOUNCE"},
		{"idle nudge negative", map[string]string{"MEDIA_IDLE_NUDGE": "-1s"}, "MEDIA_IDLE_NUDGE"},
		{"external timeout non-positive", map[string]string{"EXTERNAL_TIMEOUT": "0s"}, "EXTERNAL_TIMEOUT"},
		{"unknown transport", map[string]string{"TRANSPORT": "sms"}, "TRANSPORT"},
		{"twilio without credentials", map[string]string{"TRANSPORT": "twilio"}, "TWILIO_SID"},
		{"meta without credentials", map[string]string{"TRANSPORT": "meta"}, "META_TOKEN"},
		{"meta without app secret", map[string]string{"TRANSPORT": "meta", "META_TOKEN": "t", "META_PHONE_NUMBER_ID": "1"}, "META_APP_SECRET"},
		{"relative public base url", map[string]string{"PUBLIC_BASE_URL": "bot.example.com"}, "PUBLIC_BASE_URL"},
		{"unknown media backend", map[string]string{"MEDIA_BACKEND": "s3"}, "MEDIA_BACKEND"},
		{"supabase without credentials", map[string]string{"MEDIA_BACKEND": "supabase"}, "SUPABASE_URL"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %s validation error, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + config_strconv(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + config_strconv(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	// normalizeBasePath
	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

// small helper (avoid fmt just for ints)
func config_strconv(i int) string { return string('a' + rune(i)) }

// Ensure ambient env does not leak into defaults.
func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "STORE_BACKEND", "REDIS_URL", "TRANSPORT", "MEDIA_BACKEND",
		"TWILIO_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM", "META_TOKEN", "META_PHONE_NUMBER_ID",
		"META_APP_SECRET", "META_VERIFY_TOKEN", "PUBLIC_BASE_URL",
		"SUPABASE_URL", "SUPABASE_KEY", "CLASSIFIER_URL",
	} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
	if cfg.StoreBackend != "memory" || cfg.Transport != "log" || cfg.Media.Backend != "local" {
		t.Fatalf("backend defaults unexpected: %+v", cfg)
	}
	if cfg.MediaDebounce != 3*time.Second || cfg.MediaIdleNudge != 25*time.Second ||
		cfg.SessionTTL != 10*time.Minute || cfg.DedupTTL != 24*time.Hour {
		t.Fatalf("timing defaults unexpected: %+v", cfg)
	}
	if cfg.ClassifierURL != "" {
		t.Fatalf("expected no remote classifier by default, got %q", cfg.ClassifierURL)
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

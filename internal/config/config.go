// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage backends, messaging transports, media hosting, rate
// limiting and observability settings.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-catalog-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TwilioConfig holds Twilio WhatsApp credentials.
type TwilioConfig struct {
	AccountSID string // TWILIO_SID
	AuthToken  string // TWILIO_AUTH_TOKEN
	From       string // TWILIO_FROM, e.g. "+14155238886"
}

// MetaConfig holds WhatsApp Cloud API credentials.
type MetaConfig struct {
	Token         string // META_TOKEN
	PhoneNumberID string // META_PHONE_NUMBER_ID
	VerifyToken   string // META_VERIFY_TOKEN, echoed during webhook verification
	AppSecret     string // META_APP_SECRET, signs webhook bodies (X-Hub-Signature-256)
}

// MediaConfig selects where inbound attachments are hosted.
type MediaConfig struct {
	Backend        string // supabase|local
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
	Dir            string // local backend root
	BaseURL        string // public prefix for local files
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// Storage
	DBPath       string        // SQLite path
	StoreBackend string        // memory|redis|sql for sessions and dedup
	RedisURL     string        // redis://host:6379/0
	SessionTTL   time.Duration // conversation inactivity window
	DedupTTL     time.Duration // redelivery window

	// Conversation timing
	MediaDebounce   time.Duration // quiet period before a media batch flushes
	MediaIdleNudge  time.Duration // 0 disables the reminder
	ExternalTimeout time.Duration // bound on calls to outside services

	// Intent classification
	ClassifierURL     string // optional remote classifier
	ClassifierTimeout time.Duration

	// Messaging
	Transport     string // twilio|meta|log
	PublicBaseURL string // externally visible origin Twilio signs, e.g. https://bot.example.com
	Twilio        TwilioConfig
	Meta      MetaConfig

	Media MediaConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath:       getenv("DB_PATH", "catalog.db"),
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "memory")),
		RedisURL:     getenv("REDIS_URL", ""),
		SessionTTL:   getdur("SESSION_TTL", 10*time.Minute),
		DedupTTL:     getdur("DEDUP_TTL", 24*time.Hour),

		// Conversation timing
		MediaDebounce:   getdur("MEDIA_DEBOUNCE", 3*time.Second),
		MediaIdleNudge:  getdur("MEDIA_IDLE_NUDGE", 25*time.Second),
		ExternalTimeout: getdur("EXTERNAL_TIMEOUT", 10*time.Second),

		// Intent classification
		ClassifierURL:     getenv("CLASSIFIER_URL", ""),
		ClassifierTimeout: getdur("CLASSIFIER_TIMEOUT", 5*time.Second),

		// Messaging
		Transport:     strings.ToLower(getenv("TRANSPORT", "log")),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
		Twilio: TwilioConfig{
			AccountSID: getenv("TWILIO_SID", ""),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
			From:       getenv("TWILIO_FROM", ""),
		},
		Meta: MetaConfig{
			Token:         getenv("META_TOKEN", ""),
			PhoneNumberID: getenv("META_PHONE_NUMBER_ID", ""),
			VerifyToken:   getenv("META_VERIFY_TOKEN", ""),
			AppSecret:     getenv("META_APP_SECRET", ""),
		},

		Media: MediaConfig{
			Backend:        strings.ToLower(getenv("MEDIA_BACKEND", "local")),
			SupabaseURL:    getenv("SUPABASE_URL", ""),
			SupabaseKey:    getenv("SUPABASE_KEY", ""),
			SupabaseBucket: getenv("SUPABASE_BUCKET", "property-media"),
			Dir:            getenv("MEDIA_DIR", "media"),
			BaseURL:        getenv("MEDIA_BASE_URL", "http://localhost:8080/media"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-catalog-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.StoreBackend {
	case "memory", "sql":
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: memory, redis, sql")
	}
	if cfg.SessionTTL <= 0 || cfg.DedupTTL <= 0 {
		return cfg, errors.New("SESSION_TTL and DEDUP_TTL must be > 0")
	}
	if cfg.MediaDebounce <= 0 {
		return cfg, errors.New("MEDIA_DEBOUNCE must be > 0")
	}
	if cfg.MediaIdleNudge < 0 {
		return cfg, errors.New("MEDIA_IDLE_NUDGE must be >= 0")
	}
	if cfg.ExternalTimeout <= 0 || cfg.ClassifierTimeout <= 0 {
		return cfg, errors.New("EXTERNAL_TIMEOUT and CLASSIFIER_TIMEOUT must be > 0")
	}
	switch cfg.Transport {
	case "log":
	case "twilio":
		if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" || cfg.Twilio.From == "" {
			return cfg, errors.New("TWILIO_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM are required when TRANSPORT=twilio")
		}
	case "meta":
		if cfg.Meta.Token == "" || cfg.Meta.PhoneNumberID == "" || cfg.Meta.AppSecret == "" {
			return cfg, errors.New("META_TOKEN, META_PHONE_NUMBER_ID and META_APP_SECRET are required when TRANSPORT=meta")
		}
	default:
		return cfg, errors.New("TRANSPORT must be one of: twilio, meta, log")
	}
	if cfg.PublicBaseURL != "" {
		if u, err := url.Parse(cfg.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return cfg, errors.New("PUBLIC_BASE_URL must be an absolute URL such as https://bot.example.com")
		}
	}
	switch cfg.Media.Backend {
	case "local":
		if strings.TrimSpace(cfg.Media.Dir) == "" || strings.TrimSpace(cfg.Media.BaseURL) == "" {
			return cfg, errors.New("MEDIA_DIR and MEDIA_BASE_URL must not be empty")
		}
	case "supabase":
		if cfg.Media.SupabaseURL == "" || cfg.Media.SupabaseKey == "" || cfg.Media.SupabaseBucket == "" {
			return cfg, errors.New("SUPABASE_URL, SUPABASE_KEY and SUPABASE_BUCKET are required when MEDIA_BACKEND=supabase")
		}
	default:
		return cfg, errors.New("MEDIA_BACKEND must be one of: supabase, local")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

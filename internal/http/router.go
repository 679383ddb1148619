// Package httpapi wires the HTTP transport (Gin) to the webhook handlers and
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, CORS, security
// headers and rate limiting.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (webhook bodies carry phone numbers)
//  4. Recovery, then the request-scoped logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter keyed by WhatsApp sender, falling back to client IP
//  8. CORS and security headers
//
// Webhook routes additionally verify the provider's request signature.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-catalog-bot/internal/config"
	"github.com/tbourn/go-catalog-bot/internal/http/handlers"
	"github.com/tbourn/go-catalog-bot/internal/http/middleware"
)

// MaxBodyBytes caps every request body. Twilio and Meta payloads are small;
// attachments arrive as URLs or ids, never inline.
const MaxBodyBytes = 1 << 20

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Webhooks are mounted at fixed paths because they are registered with the
// providers; the operator API lives under cfg.APIBasePath.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskParams: []string{"Body", "From", "To"},
	}))
	r.Use(middleware.Recovery())
	r.Use(middleware.ContextLogger())
	r.Use(limitBody(MaxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySenderOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Locally hosted attachments must be reachable by WhatsApp at MEDIA_BASE_URL.
	if cfg.Media.Backend == "local" && cfg.Media.Dir != "" {
		r.Static("/media", cfg.Media.Dir)
	}

	twilioSig, metaSig := webhookAuth(cfg)
	wh := r.Group("/webhooks")
	{
		wh.POST("/twilio", twilioSig, h.TwilioWebhook)
		wh.POST("/twilio/customer", twilioSig, h.CustomerWebhook)
		wh.GET("/meta", h.MetaVerify)
		wh.POST("/meta", metaSig, h.MetaWebhook)
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.POST("/brokers/reset-credential", h.ResetCredential)
	}
}

func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// Set ACAO even without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// webhookAuth returns the signature checks for the Twilio and Meta webhooks.
// A provider is left unchecked only in log mode with no secret configured,
// for local runs; otherwise a missing secret rejects every delivery.
func webhookAuth(cfg config.Config) (twilio, meta gin.HandlerFunc) {
	pass := func(c *gin.Context) { c.Next() }
	local := cfg.Transport == "log"

	twilio = handlers.TwilioSignature(cfg.Twilio.AuthToken, cfg.PublicBaseURL)
	if local && cfg.Twilio.AuthToken == "" {
		twilio = pass
	}
	meta = handlers.MetaSignature(cfg.Meta.AppSecret)
	if local && cfg.Meta.AppSecret == "" {
		meta = pass
	}
	return twilio, meta
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Reads past the cap fail downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

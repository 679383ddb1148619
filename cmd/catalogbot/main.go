// Command catalogbot runs the WhatsApp property catalog bot: the Twilio and
// Meta webhooks, the conversation engine and the operator API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/config"
	"github.com/tbourn/go-catalog-bot/internal/conversation"
	"github.com/tbourn/go-catalog-bot/internal/dedup"
	"github.com/tbourn/go-catalog-bot/internal/gateway"
	"github.com/tbourn/go-catalog-bot/internal/hosting"
	httpapi "github.com/tbourn/go-catalog-bot/internal/http"
	"github.com/tbourn/go-catalog-bot/internal/http/handlers"
	"github.com/tbourn/go-catalog-bot/internal/intent"
	"github.com/tbourn/go-catalog-bot/internal/observability"
	"github.com/tbourn/go-catalog-bot/internal/repo"
	"github.com/tbourn/go-catalog-bot/internal/session"
	"github.com/tbourn/go-catalog-bot/internal/storefront"
	"github.com/tbourn/go-catalog-bot/internal/sysutil"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

const purgeEvery = time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")
	lg := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = lg.WithContext(ctx)

	if err := run(ctx, cfg, version); err != nil {
		lg.Fatal().Err(err).Msg("catalogbot exited")
	}
}

func run(ctx context.Context, cfg config.Config, version string) error {
	lg := zerolog.Ctx(ctx)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version,
		attribute.String("chat.transport", cfg.Transport))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	sessions, ledger, closeStores, err := openStores(cfg, db)
	if err != nil {
		return err
	}
	defer closeStores()
	if l, ok := ledger.(*dedup.SQLLedger); ok {
		go purgeLoop(ctx, l)
	}

	sender := newSender(cfg)
	uploader, err := newUploader(cfg)
	if err != nil {
		return fmt.Errorf("media uploader: %w", err)
	}

	store := repo.NewCatalog(db)
	classifier := newClassifier(cfg)
	engine := conversation.New(conversation.Deps{
		Sessions:   sessions,
		Catalog:    store,
		Classifier: classifier,
		Hosting: &hosting.Pipeline{
			Fetcher:  newFetcher(cfg),
			Uploader: uploader,
		},
		Sender: sender,
	}, conversation.Options{
		SessionTTL:      cfg.SessionTTL,
		ExternalTimeout: cfg.ExternalTimeout,
		MediaQuiet:      cfg.MediaDebounce,
		MediaIdle:       cfg.MediaIdleNudge,
	})
	defer engine.Close()

	gw := gateway.New(ledger, engine, sender)
	customers := gateway.New(ledger, storefront.New(store, classifier), sender)
	h := handlers.New(gw, engine, handlers.Options{
		MetaVerifyToken: cfg.Meta.VerifyToken,
		DeliverTimeout:  cfg.ExternalTimeout * 3,
		Customer:        customers,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("transport", cfg.Transport).
			Str("store", cfg.StoreBackend).
			Str("media", cfg.Media.Backend).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openStores picks the session store and dedup ledger for STORE_BACKEND.
// Sessions are wrapped with retries whatever the backend.
func openStores(cfg config.Config, db *gorm.DB) (session.Store, dedup.Ledger, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opt)
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}
		return session.NewResilient(session.NewRedisStore(client)),
			dedup.NewRedisLedger(client, cfg.DedupTTL), closeFn, nil
	case "sql":
		return session.NewResilient(session.NewSQLStore(db)),
			dedup.NewSQLLedger(db, cfg.DedupTTL), noop, nil
	default:
		return session.NewResilient(session.NewMemoryStore()),
			dedup.NewMemoryLedger(cfg.DedupTTL), noop, nil
	}
}

func purgeLoop(ctx context.Context, l *dedup.SQLLedger) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := l.Purge(ctx)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("dedup purge failed")
				continue
			}
			zerolog.Ctx(ctx).Debug().Int64("purged", n).Msg("dedup purge")
		}
	}
}

func httpClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.ExternalTimeout}
}

func newSender(cfg config.Config) transport.Sender {
	switch cfg.Transport {
	case "twilio":
		return &transport.TwilioSender{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
			Client:     httpClient(cfg),
		}
	case "meta":
		return &transport.MetaSender{
			Token:         cfg.Meta.Token,
			PhoneNumberID: cfg.Meta.PhoneNumberID,
			Client:        httpClient(cfg),
		}
	default:
		return transport.LogSender{}
	}
}

func newFetcher(cfg config.Config) hosting.Fetcher {
	switch cfg.Transport {
	case "meta":
		return &hosting.MetaFetcher{Client: httpClient(cfg), Token: cfg.Meta.Token}
	default:
		// Twilio media URLs need the account credentials; with the log
		// transport they are empty and the fetch is anonymous.
		return hosting.NewTwilioFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.ExternalTimeout)
	}
}

func newUploader(cfg config.Config) (hosting.Uploader, error) {
	if cfg.Media.Backend == "supabase" {
		return hosting.NewSupabaseUploader(cfg.Media.SupabaseURL, cfg.Media.SupabaseKey, cfg.Media.SupabaseBucket)
	}
	if err := os.MkdirAll(cfg.Media.Dir, 0o755); err != nil {
		return nil, err
	}
	return &hosting.LocalUploader{Dir: cfg.Media.Dir, BaseURL: cfg.Media.BaseURL}, nil
}

// newClassifier tries the remote classifier first, when configured, and
// falls back to the command grammar.
func newClassifier(cfg config.Config) intent.Classifier {
	if cfg.ClassifierURL == "" {
		return intent.CommandClassifier{}
	}
	remote := &intent.HTTPClassifier{URL: cfg.ClassifierURL, Client: &http.Client{Timeout: cfg.ClassifierTimeout}}
	return intent.Chain{
		intent.WithTimeout(remote, cfg.ClassifierTimeout),
		intent.CommandClassifier{},
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rafamhanel/web-app-agenda/internal/api/router"
	"github.com/rafamhanel/web-app-agenda/internal/app/bootstrap"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/assistant"
	"github.com/rafamhanel/web-app-agenda/internal/calendar"
	"github.com/rafamhanel/web-app-agenda/internal/calendarsync"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	appconfig "github.com/rafamhanel/web-app-agenda/internal/config"
	"github.com/rafamhanel/web-app-agenda/internal/conversation"
	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/internal/http/handlers"
	httpmiddleware "github.com/rafamhanel/web-app-agenda/internal/http/middleware"
	"github.com/rafamhanel/web-app-agenda/internal/observability/metrics"
	"github.com/rafamhanel/web-app-agenda/internal/observability/tracing"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

const userCacheTTL = 5 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agenda API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracingConfig(cfg))
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	routerCfg, cleanup, err := buildRouterConfig(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		logger.Error("failed to wire application", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func whatsappOptions(cfg *appconfig.Config) []whatsapp.Option {
	return []whatsapp.Option{
		whatsapp.WithGraphAPIBase(cfg.WhatsAppGraphBaseURL),
		whatsapp.WithTimeout(cfg.ExternalCallTimeout),
	}
}

func tracingConfig(cfg *appconfig.Config) tracing.Config {
	tc := tracing.Config{ServiceName: cfg.OTELServiceName, SampleRatio: cfg.OTELSampleRatio}
	if cfg.OTELEnabled {
		tc.Endpoint = cfg.OTELEndpoint
	}
	return tc
}

// setupMetrics registers the webhook metrics on a fresh registry and returns
// the /metrics handler serving it.
func setupMetrics() (http.Handler, *metrics.WebhookMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return metrics.Handler(reg), metrics.NewWebhookMetrics(reg)
}

func buildRouterConfig(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) (*router.Config, func(), error) {
	directory := users.NewCachedRepository(users.NewPostgresRepository(pool), redisClient, userCacheTTL, logger, users.WithTokenKey(cfg.UserCacheKey))
	outbox := events.NewOutboxStore(pool)
	ledger := appointments.NewLedger(appointments.NewPostgresRepository(pool), logger, appointments.WithEventRecorder(outbox))
	examples := assistant.NewPostgresExampleStore(pool)

	awsCfg := bootstrap.OptionalAWSConfig(ctx, cfg, logger)
	llm, cleanup, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	understanding := assistant.New(llm, logger,
		assistant.WithExampleStore(examples),
		assistant.WithTimeout(cfg.ExternalCallTimeout),
	)

	calendars := calendar.NewFactory(calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		CalendarID:   cfg.GoogleCalendarID,
		Timeout:      cfg.ExternalCallTimeout,
	}, logger)
	defaults := whatsapp.Credentials{AccessToken: cfg.WhatsAppToken, PhoneNumberID: cfg.WhatsAppPhoneNumberID}

	orchestrator := conversation.New(conversation.Config{
		Users:         directory,
		Turns:         conversation.NewPostgresTurnStore(pool),
		Offers:        conversation.NewRedisOfferStore(redisClient),
		Pending:       conversation.NewRedisPendingReplyStore(redisClient),
		Ledger:        ledger,
		Understanding: understanding,
		Calendars:     conversation.GoogleCalendars(calendars),
		Messengers:    conversation.WhatsAppMessengers(defaults, whatsappOptions(cfg)...),
		HistoryLimit:  cfg.HistoryLimit,
	}, logger)

	metricsHandler, webhookMetrics := setupMetrics()
	webhook := whatsapp.NewWebhookHandler(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, orchestrator, events.NewProcessedStore(pool), logger).
		WithMetrics(webhookMetrics)
	if cfg.WhatsAppAppSecret == "" {
		logger.Warn("WHATSAPP_APP_SECRET not set; webhook signatures are not verified")
	}

	health := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": pool,
		"redis":    handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	}, logger)

	return &router.Config{
		Logger:             logger,
		Health:             health,
		WhatsAppWebhook:    webhook,
		Automation:         handlers.NewAutomationHandler(orchestrator, logger),
		CalendarSync:       handlers.NewCalendarSyncHandler(calendarsync.NewService(directory, calendarsync.GoogleCalendars(calendars), ledger, logger), logger),
		Training:           handlers.NewTrainingHandler(directory, examples, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookLimiter:     httpmiddleware.NewRateLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute),
	}, cleanup, nil
}

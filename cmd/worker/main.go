package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rafamhanel/web-app-agenda/internal/app/bootstrap"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	appconfig "github.com/rafamhanel/web-app-agenda/internal/config"
	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/internal/observability/tracing"
	"github.com/rafamhanel/web-app-agenda/internal/reminders"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// The worker drains the outbox (professional emails, Kafka) and sends client
// reminders. It runs next to the API and shares its database.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.OTELServiceName + "-worker",
		Endpoint:    otelEndpoint(cfg),
		SampleRatio: cfg.OTELSampleRatio,
	})
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

	var directory users.Repository = users.NewPostgresRepository(pool)
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		directory = users.NewCachedRepository(directory, redisClient, 5*time.Minute, logger, users.WithTokenKey(cfg.UserCacheKey))
	}

	email, provider := bootstrap.BuildEmailSender(cfg, bootstrap.OptionalAWSConfig(ctx, cfg, logger), logger)
	logger.Info("professional notifications configured", "provider", provider)

	outbox := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(outbox, bootstrap.BuildDeliveryHandler(cfg, email, directory, logger), logger).
		WithInterval(cfg.OutboxInterval)

	ledger := appointments.NewLedger(appointments.NewPostgresRepository(pool), logger, appointments.WithEventRecorder(outbox))
	defaults := whatsapp.Credentials{AccessToken: cfg.WhatsAppToken, PhoneNumberID: cfg.WhatsAppPhoneNumberID}
	reminderWorker := reminders.NewWorker(ledger, directory, reminders.WhatsAppSenders(defaults,
		whatsapp.WithGraphAPIBase(cfg.WhatsAppGraphBaseURL),
		whatsapp.WithTimeout(cfg.ExternalCallTimeout),
	), reminders.Config{
		Lead:     cfg.ReminderLead,
		Interval: cfg.ReminderInterval,
		Template: cfg.WhatsAppReminderTemplate,
	}, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		deliverer.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		reminderWorker.Start(ctx)
	}()
	logger.Info("worker started", "outbox_interval", cfg.OutboxInterval.String(), "reminder_lead", cfg.ReminderLead.String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down worker...")
	cancel()

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("worker shutdown timed out")
	}
}

func otelEndpoint(cfg *appconfig.Config) string {
	if !cfg.OTELEnabled {
		return ""
	}
	return cfg.OTELEndpoint
}

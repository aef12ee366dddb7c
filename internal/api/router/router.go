package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	"github.com/rafamhanel/web-app-agenda/internal/http/handlers"
	httpmiddleware "github.com/rafamhanel/web-app-agenda/internal/http/middleware"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	WhatsAppWebhook    *whatsapp.WebhookHandler
	Automation         *handlers.AutomationHandler
	CalendarSync       *handlers.CalendarSyncHandler
	Training           *handlers.TrainingHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookLimiter throttles webhook deliveries per client IP (optional).
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HealthCheck)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WhatsAppWebhook != nil {
		r.Route("/webhooks/whatsapp", func(wh chi.Router) {
			if cfg.WebhookLimiter != nil {
				wh.Use(httpmiddleware.RateLimit(cfg.WebhookLimiter, cfg.Logger))
			}
			wh.Get("/", cfg.WhatsAppWebhook.HandleVerification)
			wh.Post("/", cfg.WhatsAppWebhook.HandleInbound)
		})
	}

	if cfg.Automation != nil {
		r.Post("/automation/process", cfg.Automation.Process)
	}

	r.Route("/users/{userID}", func(u chi.Router) {
		if cfg.CalendarSync != nil {
			u.Post("/calendar/sync", cfg.CalendarSync.Sync)
		}
		if cfg.Training != nil {
			u.Post("/training-examples", cfg.Training.Add)
		}
	})

	return r
}

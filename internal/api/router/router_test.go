package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rafamhanel/web-app-agenda/internal/assistant"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	"github.com/rafamhanel/web-app-agenda/internal/conversation"
	"github.com/rafamhanel/web-app-agenda/internal/http/handlers"
	httpmiddleware "github.com/rafamhanel/web-app-agenda/internal/http/middleware"
	"github.com/rafamhanel/web-app-agenda/internal/intent"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

type noopProcessor struct{ calls int }

func (p *noopProcessor) ProcessWhatsApp(context.Context, whatsapp.InboundMessage) error {
	p.calls++
	return nil
}

type echoInbound struct{}

func (echoInbound) HandleInbound(_ context.Context, msg conversation.InboundMessage) (*conversation.Result, error) {
	return &conversation.Result{UserID: msg.UserID, Action: intent.KindConversational, Reply: "Olá!"}, nil
}

type syncCounter struct{}

func (syncCounter) Sync(context.Context, string) (int, error) { return 2, nil }

func newTestRouter(t *testing.T, limit int) (http.Handler, *noopProcessor) {
	t.Helper()

	logger := logging.Default()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	directory := users.NewInMemoryRepository(users.User{ID: "u1", Name: "Dra. Ana"})

	proc := &noopProcessor{}
	cfg := &Config{
		Logger:          logger,
		Health:          handlers.NewHealthHandler(map[string]handlers.Pinger{"redis": handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })}, logger),
		WhatsAppWebhook: whatsapp.NewWebhookHandler("verify_me", "", proc, nil, logger),
		Automation:      handlers.NewAutomationHandler(echoInbound{}, logger),
		CalendarSync:    handlers.NewCalendarSyncHandler(syncCounter{}, logger),
		Training:        handlers.NewTrainingHandler(directory, assistant.NewMemoryExampleStore(), logger),
		WebhookLimiter:  httpmiddleware.NewRateLimiter(rdb, limit, 0),
	}
	return New(cfg), proc
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 10)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
}

func TestRouterWebhookVerification(t *testing.T) {
	router, _ := newTestRouter(t, 10)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify_me&hub.challenge=42", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "42" {
		t.Fatalf("unexpected verification response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterWebhookRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, 1)

	status := func() int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`{"entry":[]}`))
		req.RemoteAddr = "10.1.1.1:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}
	if got := status(); got != http.StatusOK {
		t.Fatalf("expected first delivery to pass, got %d", got)
	}
	if got := status(); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", got)
	}
}

func TestRouterAutomationAndUserRoutes(t *testing.T) {
	router, _ := newTestRouter(t, 10)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"automation", "/automation/process", `{"userId":"u1","clientPhone":"5511999990000","message":"oi"}`, http.StatusOK},
		{"calendar sync", "/users/u1/calendar/sync", ``, http.StatusOK},
		{"training", "/users/u1/training-examples", `[{"message":"oi","response":"Olá! Como posso ajudar?"}]`, http.StatusCreated},
		{"training unknown user", "/users/nope/training-examples", `[{"message":"oi","response":"Olá"}]`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

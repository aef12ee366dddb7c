package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/observability/metrics"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

const (
	providerName    = "whatsapp"
	maxWebhookBytes = 1 << 20
)

// Processor runs the conversation cycle for one inbound message.
type Processor interface {
	ProcessWhatsApp(ctx context.Context, msg InboundMessage) error
}

// Deduper remembers provider message ids so retried webhooks are ignored.
type Deduper interface {
	MarkProcessed(ctx context.Context, provider, messageID string) (bool, error)
	Unmark(ctx context.Context, provider, messageID string) error
}

// WebhookHandler serves GET (handshake) and POST (messages) on the webhook.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	processor   Processor
	dedupe      Deduper
	metrics     *metrics.WebhookMetrics
	logger      *logging.Logger
}

// NewWebhookHandler wires the webhook. An empty appSecret disables signature
// checks; a nil dedupe processes every delivery.
func NewWebhookHandler(verifyToken, appSecret string, processor Processor, dedupe Deduper, logger *logging.Logger) *WebhookHandler {
	if processor == nil {
		panic("whatsapp: processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		processor:   processor,
		dedupe:      dedupe,
		logger:      logger,
	}
}

// WithMetrics records delivery outcomes and latency.
func (h *WebhookHandler) WithMetrics(m *metrics.WebhookMetrics) *WebhookHandler {
	h.metrics = m
	return h
}

// HandleVerification answers Meta's subscription challenge.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), h.verifyToken)
	if !ok {
		h.logger.Warn("whatsapp webhook verification failed", "mode", q.Get("hub.mode"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// HandleInbound processes a message notification.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency(providerName, time.Since(start).Seconds()) }()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.metrics.ObserveInbound(providerName, "bad_request")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("whatsapp webhook signature mismatch", "remote_addr", r.RemoteAddr)
		h.metrics.ObserveInbound(providerName, "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result := ParseWebhook(body)
	if !result.OK() {
		h.metrics.ObserveInbound(providerName, string(result.Reason))
		if result.Reason == SkipInvalidPayload {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		writeStatus(w, http.StatusOK, string(result.Reason))
		return
	}
	msg := *result.Message
	ctx := r.Context()

	if h.dedupe != nil && msg.ID != "" {
		fresh, err := h.dedupe.MarkProcessed(ctx, providerName, msg.ID)
		if err != nil {
			h.logger.Error("whatsapp dedupe check failed", "message_id", msg.ID, "error", err)
		} else if !fresh {
			h.logger.Info("whatsapp duplicate delivery ignored", "message_id", msg.ID)
			h.metrics.ObserveInbound(providerName, "duplicate")
			writeStatus(w, http.StatusOK, "duplicate")
			return
		}
	}

	if err := h.processor.ProcessWhatsApp(ctx, msg); err != nil {
		h.logger.Error("whatsapp message processing failed",
			"message_id", msg.ID,
			"client_phone", msg.From,
			"error", err,
		)
		if h.dedupe != nil && msg.ID != "" {
			// Let Meta's retry run the cycle again.
			if uerr := h.dedupe.Unmark(context.WithoutCancel(ctx), providerName, msg.ID); uerr != nil {
				h.logger.Warn("whatsapp dedupe unmark failed", "message_id", msg.ID, "error", uerr)
			}
		}
		h.metrics.ObserveInbound(providerName, "error")
		writeStatus(w, http.StatusInternalServerError, "error")
		return
	}
	h.metrics.ObserveInbound(providerName, "success")
	writeStatus(w, http.StatusOK, "success")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

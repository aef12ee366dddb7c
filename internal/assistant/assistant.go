// Package assistant wraps the language model behind three calls with fixed
// fallbacks: intent classification, booking field extraction and free replies.
package assistant

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rafamhanel/web-app-agenda/internal/intent"
	"github.com/rafamhanel/web-app-agenda/internal/replies"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

var assistantTracer = otel.Tracer("agenda.internal.assistant")

const (
	purposeClassify = "classify"
	purposeExtract  = "extract"
	purposeReply    = "reply"

	jsonTemperature  = 0.3
	replyTemperature = 0.7
	replyMaxTokens   = 300
	jsonMaxTokens    = 200

	promptSlotCount  = 5
	maxFewShot       = 10
	defaultLLMBudget = 20 * time.Second
)

var (
	dateRE  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRE = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
)

// Assistant talks to the model on behalf of the orchestrator. Every method
// degrades to a fixed answer instead of returning an error.
type Assistant struct {
	client   LLMClient
	model    string
	examples ExampleStore
	logger   *logging.Logger
	timeout  time.Duration
	now      func() time.Time
}

// Option customises an Assistant.
type Option func(*Assistant)

// WithModel sets the model id passed on every request.
func WithModel(model string) Option {
	return func(a *Assistant) { a.model = strings.TrimSpace(model) }
}

// WithExampleStore enables few-shot examples in conversational replies.
func WithExampleStore(store ExampleStore) Option {
	return func(a *Assistant) { a.examples = store }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock overrides the time source used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds an Assistant over client.
func New(client LLMClient, logger *logging.Logger, opts ...Option) *Assistant {
	if client == nil {
		panic("assistant: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Assistant{
		client:  client,
		logger:  logger,
		timeout: defaultLLMBudget,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClassifyIntent returns the intent of message, or {other, 0} when the model
// fails or answers with something unreadable.
func (a *Assistant) ClassifyIntent(ctx context.Context, message string) intent.Result {
	ctx, span := assistantTracer.Start(ctx, "assistant.classify")
	defer span.End()

	raw, err := a.complete(ctx, purposeClassify, LLMRequest{
		System:      []string{classifyPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: message}},
		MaxTokens:   jsonMaxTokens,
		Temperature: jsonTemperature,
		JSON:        true,
	})
	if err != nil {
		span.RecordError(err)
		return a.fallbackIntent(err)
	}

	var decoded struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := decodeJSON(raw, &decoded); err != nil {
		span.RecordError(err)
		return a.fallbackIntent(err)
	}

	result := intent.Result{
		Category:   intent.ParseCategory(decoded.Intent),
		Confidence: clamp01(decoded.Confidence),
	}
	span.SetAttributes(
		attribute.String("agenda.intent", string(result.Category)),
		attribute.Float64("agenda.intent_confidence", result.Confidence),
	)
	return result
}

// ExtractBookingFields pulls date, time and client name from message.
// Values that do not match YYYY-MM-DD or HH:MM are dropped. Failures yield an
// empty Extraction.
func (a *Assistant) ExtractBookingFields(ctx context.Context, message string, loc *time.Location) intent.Extraction {
	ctx, span := assistantTracer.Start(ctx, "assistant.extract")
	defer span.End()

	now := a.now()
	if loc != nil {
		now = now.In(loc)
	}
	raw, err := a.complete(ctx, purposeExtract, LLMRequest{
		System:      []string{buildExtractPrompt(now)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: message}},
		MaxTokens:   jsonMaxTokens,
		Temperature: jsonTemperature,
		JSON:        true,
	})
	if err != nil {
		span.RecordError(err)
		a.logger.Warn("booking extraction failed", "error", err)
		llmFallbacksTotal.WithLabelValues(purposeExtract).Inc()
		return intent.Extraction{}
	}

	var decoded struct {
		Date       *string `json:"date"`
		Time       *string `json:"time"`
		ClientName *string `json:"clientName"`
	}
	if err := decodeJSON(raw, &decoded); err != nil {
		span.RecordError(err)
		a.logger.Warn("booking extraction unreadable", "error", err)
		llmFallbacksTotal.WithLabelValues(purposeExtract).Inc()
		return intent.Extraction{}
	}

	var out intent.Extraction
	if d := deref(decoded.Date); dateRE.MatchString(d) {
		out.Date = d
	}
	if t := deref(decoded.Time); clockRE.MatchString(t) {
		if len(t) == 4 {
			t = "0" + t
		}
		out.Time = t
	}
	if name := deref(decoded.ClientName); !strings.EqualFold(name, "null") {
		out.ClientName = name
	}
	return out
}

// ReplyRequest carries everything the free-form reply needs.
type ReplyRequest struct {
	UserID   string
	Profile  Profile
	Slots    []time.Time
	Location *time.Location
	History  []ChatMessage
	Message  string
}

// GenerateReply writes a conversational answer in the professional's tone.
// It returns the fixed apology when the model is unavailable.
func (a *Assistant) GenerateReply(ctx context.Context, req ReplyRequest) string {
	ctx, span := assistantTracer.Start(ctx, "assistant.reply")
	defer span.End()
	span.SetAttributes(attribute.String("agenda.user_id", req.UserID))

	slots := req.Slots
	if len(slots) > promptSlotCount {
		slots = slots[:promptSlotCount]
	}
	system := buildReplyPrompt(req.Profile, slots, req.Location, a.loadExamples(ctx, req.UserID))

	messages := make([]ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.Message})

	text, err := a.complete(ctx, purposeReply, LLMRequest{
		System:      []string{system},
		Messages:    messages,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		span.RecordError(err)
		a.logger.Error("reply generation failed", "user_id", req.UserID, "error", err)
		llmFallbacksTotal.WithLabelValues(purposeReply).Inc()
		return replies.Apology
	}
	if strings.TrimSpace(text) == "" {
		return replies.Unprocessable
	}
	return text
}

func (a *Assistant) loadExamples(ctx context.Context, userID string) []TrainingExample {
	if a.examples == nil || userID == "" {
		return nil
	}
	examples, err := a.examples.List(ctx, userID, maxFewShot)
	if err != nil {
		a.logger.Warn("failed to load training examples", "user_id", userID, "error", err)
		return nil
	}
	return examples
}

func (a *Assistant) complete(ctx context.Context, purpose string, req LLMRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req.Model = a.model
	start := time.Now()
	resp, err := a.client.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmLatency.WithLabelValues(purpose, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if resp.Usage.Input > 0 {
		llmTokensTotal.WithLabelValues(purpose, "input").Add(float64(resp.Usage.Input))
	}
	if resp.Usage.Output > 0 {
		llmTokensTotal.WithLabelValues(purpose, "output").Add(float64(resp.Usage.Output))
	}
	return resp.Text, nil
}

func (a *Assistant) fallbackIntent(err error) intent.Result {
	a.logger.Warn("intent classification failed", "error", err)
	llmFallbacksTotal.WithLabelValues(purposeClassify).Inc()
	return intent.Fallback
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

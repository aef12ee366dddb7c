// Package reminders nudges clients shortly before their appointment and
// closes appointments that already ended.
package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	"github.com/rafamhanel/web-app-agenda/internal/replies"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

const (
	DefaultLead      = 3 * time.Hour
	DefaultInterval  = 5 * time.Minute
	defaultBatchSize = 50
)

var remindersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agenda",
		Subsystem: "reminders",
		Name:      "processed_total",
		Help:      "Appointment reminders by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(remindersTotal)
}

// Ledger is the part of appointments.Ledger the worker drives.
type Ledger interface {
	DueReminders(ctx context.Context, lead time.Duration, limit int) ([]appointments.Appointment, error)
	MarkReminded(ctx context.Context, id string) error
	CompletePast(ctx context.Context) (int, error)
}

// Sender delivers reminders on WhatsApp.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error)
	SendTemplate(ctx context.Context, to string, tpl whatsapp.Template) (*whatsapp.SendResponse, error)
}

// SenderProvider returns the sender of u, or nil when u cannot send.
type SenderProvider func(u *users.User) Sender

// WhatsAppSenders builds a Graph API client per professional.
func WhatsAppSenders(defaults whatsapp.Credentials, opts ...whatsapp.Option) SenderProvider {
	return func(u *users.User) Sender {
		client := whatsapp.ForAccount(whatsapp.Credentials{
			AccessToken:   u.WhatsAppToken,
			PhoneNumberID: u.WhatsAppPhoneNumberID,
		}, defaults, opts...)
		if client == nil {
			return nil
		}
		return client
	}
}

// Config tunes the worker.
type Config struct {
	Lead      time.Duration
	Interval  time.Duration
	BatchSize int
	// Template is the approved WhatsApp template name. When empty the plain
	// text reminder is sent instead.
	Template string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Worker sends due reminders and runs the completion sweep.
type Worker struct {
	ledger  Ledger
	users   users.Repository
	senders SenderProvider
	cfg     Config
	logger  *logging.Logger
}

func NewWorker(ledger Ledger, directory users.Repository, senders SenderProvider, cfg Config, logger *logging.Logger) *Worker {
	if ledger == nil || directory == nil || senders == nil {
		panic("reminders: ledger, users and senders are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{ledger: ledger, users: directory, senders: senders, cfg: cfg, logger: logger}
}

// Start runs ProcessDue and Sweep every interval until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if _, err := w.ProcessDue(ctx); err != nil {
		w.logger.Error("reminders: process due failed", "error", err)
	}
	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Error("reminders: completion sweep failed", "error", err)
	}
}

// ProcessDue reminds every client whose confirmed appointment starts within
// the lead time. Returns the number of reminders sent. A failed send leaves
// the appointment unmarked so the next run retries it.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	due, err := w.ledger.DueReminders(ctx, w.cfg.Lead, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("reminders: list due: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	w.logger.Info("reminders: processing due appointments", "count", len(due))

	sent := 0
	for i := range due {
		appt := &due[i]
		ok, err := w.processOne(ctx, appt)
		if err != nil {
			remindersTotal.WithLabelValues("failed").Inc()
			w.logger.Error("reminders: failed to remind", "appointment_id", appt.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) processOne(ctx context.Context, appt *appointments.Appointment) (bool, error) {
	if strings.TrimSpace(appt.ClientPhone) == "" {
		// Synced events carry no phone number.
		remindersTotal.WithLabelValues("skipped").Inc()
		return false, w.ledger.MarkReminded(ctx, appt.ID)
	}

	user, err := w.users.Get(ctx, appt.UserID)
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	sender := w.senders(user)
	if sender == nil {
		remindersTotal.WithLabelValues("skipped").Inc()
		w.logger.Warn("reminders: no whatsapp credentials", "user_id", user.ID, "appointment_id", appt.ID)
		return false, w.ledger.MarkReminded(ctx, appt.ID)
	}

	loc := user.Location()
	if w.cfg.Template != "" {
		name := appt.ClientName
		if strings.TrimSpace(name) == "" {
			name = "cliente"
		}
		_, err = sender.SendTemplate(ctx, appt.ClientPhone, whatsapp.BodyTemplate(w.cfg.Template, name, replies.Clock(appt.StartAt, loc)))
	} else {
		_, err = sender.SendText(ctx, appt.ClientPhone, replies.Reminder(appt.ClientName, appt.StartAt, w.cfg.Now(), loc))
	}
	if err != nil {
		return false, fmt.Errorf("send reminder: %w", err)
	}

	if err := w.ledger.MarkReminded(ctx, appt.ID); err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	remindersTotal.WithLabelValues("sent").Inc()
	w.logger.Info("reminders: reminder sent",
		"appointment_id", appt.ID, "user_id", appt.UserID, "client_phone", appt.ClientPhone)
	return true, nil
}

// Sweep marks confirmed appointments that already ended as completed.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	n, err := w.ledger.CompletePast(ctx)
	if err != nil {
		return 0, fmt.Errorf("reminders: complete past: %w", err)
	}
	return n, nil
}

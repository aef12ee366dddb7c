package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// EmailSender delivers one plain-text notification to a professional.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// Email tells a professional what the automation did on their agenda.
// Category is the outbox event type; providers tag the message with it.
type Email struct {
	To            string
	ToName        string
	Subject       string
	Text          string
	Category      string
	AppointmentID string
}

const defaultFromName = "Agenda"

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends notifications through the SendGrid v3 API.
type SendGridSender struct {
	api    sendgridAPI
	from   *mail.Email
	logger *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), cfg, logger)
}

func newSendGridSender(api sendgridAPI, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{api: api, from: mail.NewEmail(cfg.FromName, cfg.FromEmail), logger: logger}
}

func sendgridMessage(from *mail.Email, email Email) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = email.Subject
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(email.ToName, email.To))
	if email.AppointmentID != "" {
		p.SetCustomArg("appointment_id", email.AppointmentID)
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", email.Text))
	if email.Category != "" {
		m.AddCategories(email.Category)
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, email Email) error {
	if s.api == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	resp, err := s.api.SendWithContext(ctx, sendgridMessage(s.from, email))
	if err != nil {
		return apperrors.External("sendgrid", "send", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected notification",
			"status", resp.StatusCode, "body", resp.Body, "appointment_id", email.AppointmentID)
		return apperrors.External("sendgrid", "send", fmt.Errorf("status %d", resp.StatusCode))
	}
	s.logger.Info("notification sent via sendgrid",
		"category", email.Category, "appointment_id", email.AppointmentID, "status", resp.StatusCode)
	return nil
}

// LogSender only logs notifications. It stands in when no provider is set.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info("notification not sent, no email provider",
		"category", email.Category, "appointment_id", email.AppointmentID,
		"subject", email.Subject, "to_domain", domainOf(email.To))
	return nil
}

func domainOf(address string) string {
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		return address[i+1:]
	}
	return ""
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/internal/replies"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// UserLookup resolves the professional an event belongs to.
type UserLookup interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// Service emails professionals when the automation books or cancels on
// their behalf. It is an events.DeliveryHandler fed by the outbox.
type Service struct {
	email  EmailSender
	users  UserLookup
	logger *logging.Logger
}

func NewService(email EmailSender, lookup UserLookup, logger *logging.Logger) *Service {
	if lookup == nil {
		panic("notify: user lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewLogSender(logger)
	}
	return &Service{email: email, users: lookup, logger: logger}
}

var _ events.DeliveryHandler = (*Service)(nil)

// Handle sends the email for booked and cancelled appointments. Other event
// types and users without an address are skipped.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var msg *Email
	var err error
	switch entry.Type {
	case events.TypeAppointmentBooked:
		msg, err = s.bookedEmail(ctx, entry.Payload)
	case events.TypeAppointmentCancelled:
		msg, err = s.cancelledEmail(ctx, entry.Payload)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	if err := s.email.Send(ctx, *msg); err != nil {
		return fmt.Errorf("notify: send %s email: %w", entry.Type, err)
	}
	return nil
}

func (s *Service) bookedEmail(ctx context.Context, payload json.RawMessage) (*Email, error) {
	var evt events.AppointmentBookedV1
	if err := json.Unmarshal(payload, &evt); err != nil {
		s.logger.Warn("notify: malformed booked event", "error", err)
		return nil, nil
	}
	user, err := s.recipient(ctx, evt.UserID)
	if user == nil || err != nil {
		return nil, err
	}
	when := replies.Slot(evt.StartAt, user.Location())
	client := clientLabel(evt.ClientName, evt.ClientPhone)
	return &Email{
		To:            user.Email,
		ToName:        user.Name,
		Category:      events.TypeAppointmentBooked,
		AppointmentID: evt.AppointmentID,
		Subject:       fmt.Sprintf("Novo agendamento: %s", when),
		Text: fmt.Sprintf("Olá %s,\n\n%s agendou um horário pelo WhatsApp para %s (até %s).\n",
			firstName(user.Name), client, when, replies.Clock(evt.EndAt, user.Location())),
	}, nil
}

func (s *Service) cancelledEmail(ctx context.Context, payload json.RawMessage) (*Email, error) {
	var evt events.AppointmentCancelledV1
	if err := json.Unmarshal(payload, &evt); err != nil {
		s.logger.Warn("notify: malformed cancelled event", "error", err)
		return nil, nil
	}
	user, err := s.recipient(ctx, evt.UserID)
	if user == nil || err != nil {
		return nil, err
	}
	when := replies.Slot(evt.StartAt, user.Location())
	return &Email{
		To:            user.Email,
		ToName:        user.Name,
		Category:      events.TypeAppointmentCancelled,
		AppointmentID: evt.AppointmentID,
		Subject:       fmt.Sprintf("Agendamento cancelado: %s", when),
		Text: fmt.Sprintf("Olá %s,\n\n%s cancelou o horário de %s.\n",
			firstName(user.Name), clientLabel(evt.ClientName, evt.ClientPhone), when),
	}, nil
}

func (s *Service) recipient(ctx context.Context, userID string) (*users.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, users.ErrUserNotFound) {
		s.logger.Warn("notify: event for unknown user", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: load user: %w", err)
	}
	if strings.TrimSpace(user.Email) == "" {
		s.logger.Debug("notify: user has no email", "user_id", userID)
		return nil, nil
	}
	return user, nil
}

func clientLabel(name, phone string) string {
	name = strings.TrimSpace(name)
	switch {
	case name != "" && phone != "":
		return fmt.Sprintf("%s (%s)", name, phone)
	case name != "":
		return name
	case phone != "":
		return phone
	}
	return "Um cliente"
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return "tudo bem"
}

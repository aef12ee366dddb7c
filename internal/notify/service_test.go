package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/internal/users"
)

type recordingSender struct {
	sent []Email
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Email) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func entry(t *testing.T, typ string, payload any) events.OutboxEntry {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return events.OutboxEntry{Type: typ, UserID: "u1", Payload: raw}
}

func newTestService(sender EmailSender, seed ...users.User) *Service {
	return NewService(sender, users.NewInMemoryRepository(seed...), nil)
}

var ana = users.User{ID: "u1", Name: "Ana Souza", Email: "ana@example.com", Timezone: "America/Sao_Paulo"}

func TestHandleBookedSendsEmail(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestService(sender, ana)

	start := time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC) // 10:00 in São Paulo
	err := svc.Handle(context.Background(), entry(t, events.TypeAppointmentBooked, events.AppointmentBookedV1{
		AppointmentID: "appt-1",
		UserID:        "u1",
		ClientName:    "João",
		ClientPhone:   "5511999990000",
		StartAt:       start,
		EndAt:         start.Add(time.Hour),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "ana@example.com" {
		t.Errorf("to = %q", msg.To)
	}
	if msg.Category != events.TypeAppointmentBooked || msg.AppointmentID != "appt-1" {
		t.Errorf("category = %q, appointment = %q", msg.Category, msg.AppointmentID)
	}
	if !strings.Contains(msg.Subject, "terça-feira, 16 de janeiro às 10:00") {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Olá Ana") || !strings.Contains(msg.Text, "João (5511999990000)") || !strings.Contains(msg.Text, "até 11:00") {
		t.Errorf("body = %q", msg.Text)
	}
}

func TestHandleCancelledSendsEmail(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestService(sender, ana)

	err := svc.Handle(context.Background(), entry(t, events.TypeAppointmentCancelled, events.AppointmentCancelledV1{
		UserID:      "u1",
		ClientPhone: "5511999990000",
		StartAt:     time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 || !strings.HasPrefix(sender.sent[0].Subject, "Agendamento cancelado") {
		t.Fatalf("unexpected emails: %+v", sender.sent)
	}
}

func TestHandleSkips(t *testing.T) {
	noEmail := users.User{ID: "u1", Name: "Ana"}
	tests := []struct {
		name  string
		seed  []users.User
		entry func(t *testing.T) events.OutboxEntry
	}{
		{
			name: "unknown type",
			seed: []users.User{ana},
			entry: func(t *testing.T) events.OutboxEntry {
				return entry(t, "appointment.updated", map[string]string{"user_id": "u1"})
			},
		},
		{
			name: "unknown user",
			entry: func(t *testing.T) events.OutboxEntry {
				return entry(t, events.TypeAppointmentBooked, events.AppointmentBookedV1{UserID: "u1"})
			},
		},
		{
			name: "user without email",
			seed: []users.User{noEmail},
			entry: func(t *testing.T) events.OutboxEntry {
				return entry(t, events.TypeAppointmentBooked, events.AppointmentBookedV1{UserID: "u1"})
			},
		},
		{
			name: "malformed payload",
			seed: []users.User{ana},
			entry: func(t *testing.T) events.OutboxEntry {
				return events.OutboxEntry{Type: events.TypeAppointmentBooked, Payload: json.RawMessage(`{`)}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			svc := newTestService(sender, tt.seed...)
			if err := svc.Handle(context.Background(), tt.entry(t)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sender.sent) != 0 {
				t.Fatalf("expected no email, got %d", len(sender.sent))
			}
		})
	}
}

func TestHandleSendFailureIsRetried(t *testing.T) {
	svc := newTestService(&recordingSender{err: errors.New("smtp down")}, ana)
	err := svc.Handle(context.Background(), entry(t, events.TypeAppointmentBooked, events.AppointmentBookedV1{UserID: "u1"}))
	if err == nil {
		t.Fatal("expected error so the outbox retries")
	}
}

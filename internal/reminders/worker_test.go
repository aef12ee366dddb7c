package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	"github.com/rafamhanel/web-app-agenda/internal/users"
)

var now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	texts     map[string]string
	templates map[string]whatsapp.Template
	err       error
}

func newFakeSender() *fakeSender {
	return &fakeSender{texts: map[string]string{}, templates: map[string]whatsapp.Template{}}
}

func (f *fakeSender) SendText(_ context.Context, to, body string) (*whatsapp.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts[to] = body
	return &whatsapp.SendResponse{}, nil
}

func (f *fakeSender) SendTemplate(_ context.Context, to string, tpl whatsapp.Template) (*whatsapp.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.templates[to] = tpl
	return &whatsapp.SendResponse{}, nil
}

type fixture struct {
	ledger *appointments.Ledger
	sender *fakeSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := appointments.NewLedger(appointments.NewInMemoryRepository(), nil,
		appointments.WithClock(func() time.Time { return now }))
	return &fixture{ledger: ledger, sender: newFakeSender()}
}

func (f *fixture) book(t *testing.T, phone, name string, start time.Time) *appointments.Appointment {
	t.Helper()
	appt, err := f.ledger.Create(context.Background(), appointments.NewAppointment{
		UserID:      "u1",
		ClientPhone: phone,
		ClientName:  name,
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return appt
}

func (f *fixture) worker(cfg Config) *Worker {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return now }
	}
	directory := users.NewInMemoryRepository(users.User{ID: "u1", Name: "Ana", Timezone: "America/Sao_Paulo"})
	return NewWorker(f.ledger, directory, func(*users.User) Sender { return f.sender }, cfg, nil)
}

func TestProcessDueSendsTextOnce(t *testing.T) {
	f := newFixture(t)
	soon := f.book(t, "5511911110000", "João", now.Add(2*time.Hour)) // 11:00 in São Paulo
	f.book(t, "5511922220000", "Maria", now.Add(5*time.Hour))

	w := f.worker(Config{})
	sent, err := w.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	want := "Oi João! Lembrete: você tem um horário marcado hoje às 11:00. Te espero! 😊"
	if got := f.sender.texts["5511911110000"]; got != want {
		t.Errorf("reminder = %q, want %q", got, want)
	}

	got, _ := f.ledger.Get(context.Background(), soon.ID)
	if got.RemindedAt == nil {
		t.Error("expected reminded_at to be set")
	}

	sent, err = w.ProcessDue(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("second run sent %d, err %v", sent, err)
	}
}

func TestProcessDueUsesTemplate(t *testing.T) {
	f := newFixture(t)
	f.book(t, "5511911110000", "", now.Add(time.Hour))

	if _, err := f.worker(Config{Template: "appointment_reminder"}).ProcessDue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tpl, ok := f.sender.templates["5511911110000"]
	if !ok {
		t.Fatal("expected a template send")
	}
	if tpl.Name != "appointment_reminder" || tpl.Language.Code != "pt_BR" {
		t.Errorf("unexpected template %+v", tpl)
	}
	params := tpl.Components[0].Parameters
	if len(params) != 2 || params[0].Text != "cliente" || params[1].Text != "10:00" {
		t.Errorf("unexpected params %+v", params)
	}
}

func TestProcessDueRetriesFailedSend(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "5511911110000", "João", now.Add(time.Hour))
	f.sender.err = errors.New("graph api down")

	sent, err := f.worker(Config{}).ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected nothing sent, got %d", sent)
	}
	got, _ := f.ledger.Get(context.Background(), appt.ID)
	if got.RemindedAt != nil {
		t.Error("failed reminder must stay pending")
	}
}

func TestSyncedAppointmentsAreNotReminded(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.SyncFromExternalCalendar(context.Background(), "u1", []appointments.ExternalEvent{
		{ID: "evt-1", Summary: "Consulta", StartAt: now.Add(time.Hour), EndAt: now.Add(2 * time.Hour)},
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	w := f.worker(Config{})
	sent, err := w.ProcessDue(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("sent %d, err %v", sent, err)
	}
	due, _ := f.ledger.DueReminders(context.Background(), DefaultLead, 10)
	if len(due) != 0 {
		t.Errorf("synced appointment without phone listed as due (%d)", len(due))
	}
}

func TestSweepCompletesEndedAppointments(t *testing.T) {
	f := newFixture(t)
	past := now.Add(-3 * time.Hour)
	ended, err := f.ledger.Create(context.Background(), appointments.NewAppointment{
		UserID: "u1", ClientPhone: "5511911110000", StartAt: past, EndAt: past.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.book(t, "5511922220000", "Maria", now.Add(time.Hour))

	n, err := f.worker(Config{}).Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completed, got %d", n)
	}
	got, _ := f.ledger.Get(context.Background(), ended.ID)
	if got.Status != appointments.StatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestProcessDueNamesTomorrowAfterMidnight(t *testing.T) {
	late := time.Date(2024, 1, 16, 1, 30, 0, 0, time.UTC) // 22:30 on the 15th in São Paulo
	f := &fixture{
		ledger: appointments.NewLedger(appointments.NewInMemoryRepository(), nil,
			appointments.WithClock(func() time.Time { return late })),
		sender: newFakeSender(),
	}
	f.book(t, "5511911110000", "João", late.Add(2*time.Hour))

	sent, err := f.worker(Config{Now: func() time.Time { return late }}).ProcessDue(context.Background())
	if err != nil || sent != 1 {
		t.Fatalf("sent %d, err %v", sent, err)
	}
	want := "Oi João! Lembrete: você tem um horário marcado amanhã às 00:30. Te espero! 😊"
	if got := f.sender.texts["5511911110000"]; got != want {
		t.Errorf("reminder = %q, want %q", got, want)
	}
}

package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

var ledgerTracer = otel.Tracer("agenda.internal.appointments")

// untitledEvent names synced events that have no summary.
const untitledEvent = "Sem título"

// EventRecorder stores appointment lifecycle events for later delivery.
type EventRecorder interface {
	Record(ctx context.Context, userID, eventType string, payload any) error
}

// Ledger is the authoritative record of appointments.
type Ledger struct {
	repo     Repository
	recorder EventRecorder
	logger   *logging.Logger
	now      func() time.Time
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithEventRecorder records appointment.booked / appointment.cancelled events.
func WithEventRecorder(recorder EventRecorder) LedgerOption {
	return func(l *Ledger) {
		l.recorder = recorder
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger constructs a ledger over repo.
func NewLedger(repo Repository, logger *logging.Logger, opts ...LedgerOption) *Ledger {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Ledger{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAvailable returns ErrConflict when [start,end) overlaps an active
// appointment of userID. Callers use it before touching the external calendar.
func (l *Ledger) CheckAvailable(ctx context.Context, userID string, start, end time.Time) error {
	overlap, err := l.repo.HasActiveOverlap(ctx, userID, start, end)
	if err != nil {
		return err
	}
	if overlap {
		return ErrConflict
	}
	return nil
}

// Create inserts a confirmed appointment. It fails with ErrConflict when the
// interval overlaps a scheduled or confirmed appointment of the same user.
func (l *Ledger) Create(ctx context.Context, in NewAppointment) (*Appointment, error) {
	ctx, span := ledgerTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.user_id", in.UserID),
		attribute.String("agenda.start_at", in.StartAt.Format(time.RFC3339)),
	)

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := l.CheckAvailable(ctx, in.UserID, in.StartAt, in.EndAt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	appt := &Appointment{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		ClientPhone:     in.ClientPhone,
		ClientName:      in.ClientName,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		Status:          StatusConfirmed,
		ExternalEventID: in.ExternalEventID,
	}
	if err := l.repo.Insert(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.logger.Info("appointment confirmed",
		"appointment_id", appt.ID,
		"user_id", appt.UserID,
		"client_phone", appt.ClientPhone,
		"start_at", appt.StartAt,
	)
	l.record(ctx, appt.UserID, events.TypeAppointmentBooked, events.AppointmentBookedV1{
		EventID:         uuid.New().String(),
		AppointmentID:   appt.ID,
		UserID:          appt.UserID,
		ClientPhone:     appt.ClientPhone,
		ClientName:      appt.ClientName,
		StartAt:         appt.StartAt,
		EndAt:           appt.EndAt,
		ExternalEventID: appt.ExternalEventID,
		OccurredAt:      l.now(),
	})
	return appt, nil
}

// Cancel moves an appointment to cancelled. Cancelling twice is accepted.
func (l *Ledger) Cancel(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("agenda.appointment_id", id))

	appt, err := l.repo.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	switch appt.Status {
	case StatusCancelled:
		return nil
	case StatusCompleted:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusCancelled)
	}

	changed, err := l.repo.UpdateStatus(ctx, id, StatusCancelled, StatusScheduled, StatusConfirmed)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !changed {
		// Lost a race with another transition; re-read to report the outcome.
		current, err := l.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCancelled {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, StatusCancelled)
	}

	l.logger.Info("appointment cancelled", "appointment_id", id, "user_id", appt.UserID)
	l.record(ctx, appt.UserID, events.TypeAppointmentCancelled, events.AppointmentCancelledV1{
		EventID:         uuid.New().String(),
		AppointmentID:   appt.ID,
		UserID:          appt.UserID,
		ClientPhone:     appt.ClientPhone,
		ClientName:      appt.ClientName,
		StartAt:         appt.StartAt,
		ExternalEventID: appt.ExternalEventID,
		OccurredAt:      l.now(),
	})
	return nil
}

// CompletePast marks every confirmed appointment that already ended as completed.
func (l *Ledger) CompletePast(ctx context.Context) (int, error) {
	n, err := l.repo.CompleteEndedBefore(ctx, l.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Info("appointments completed", "count", n)
	}
	return n, nil
}

// FindNearestActive returns the confirmed appointment of the client with the
// smallest start at or after now, or nil when there is none.
func (l *Ledger) FindNearestActive(ctx context.Context, userID, clientPhone string, now time.Time) (*Appointment, error) {
	return l.repo.FindNearestActive(ctx, userID, clientPhone, now)
}

// Get returns a single appointment.
func (l *Ledger) Get(ctx context.Context, id string) (*Appointment, error) {
	return l.repo.Get(ctx, id)
}

// DueReminders lists confirmed appointments starting within [now, now+lead)
// that were not reminded yet.
func (l *Ledger) DueReminders(ctx context.Context, lead time.Duration, limit int) ([]Appointment, error) {
	now := l.now()
	return l.repo.ListDueReminders(ctx, now, now.Add(lead), limit)
}

// MarkReminded records that the client was reminded.
func (l *Ledger) MarkReminded(ctx context.Context, id string) error {
	return l.repo.MarkReminded(ctx, id, l.now())
}

// SyncFromExternalCalendar inserts a confirmed appointment for every external
// event that has no local record yet, matched by external event id. Existing
// records are never updated or deleted, so running it again is harmless.
// Events that overlap an active appointment are skipped. The first storage
// error stops the run and is returned with the count inserted so far.
func (l *Ledger) SyncFromExternalCalendar(ctx context.Context, userID string, external []ExternalEvent) (int, error) {
	ctx, span := ledgerTracer.Start(ctx, "appointments.sync_external")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.user_id", userID),
		attribute.Int("agenda.external_events", len(external)),
	)

	inserted := 0
	for _, ev := range external {
		if strings.TrimSpace(ev.ID) == "" || !ev.EndAt.After(ev.StartAt) {
			continue
		}
		exists, err := l.repo.ExternalEventExists(ctx, userID, ev.ID)
		if err != nil {
			span.RecordError(err)
			return inserted, fmt.Errorf("appointments: sync %s: %w", ev.ID, err)
		}
		if exists {
			continue
		}

		name := strings.TrimSpace(ev.Summary)
		if name == "" {
			name = untitledEvent
		}
		appt := &Appointment{
			ID:              uuid.New().String(),
			UserID:          userID,
			ClientName:      name,
			StartAt:         ev.StartAt,
			EndAt:           ev.EndAt,
			Status:          StatusConfirmed,
			ExternalEventID: ev.ID,
		}
		err = l.repo.Insert(ctx, appt)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, ErrDuplicateExternalEvent):
		case errors.Is(err, ErrConflict):
			l.logger.Warn("external event overlaps an active appointment; skipped",
				"user_id", userID,
				"external_event_id", ev.ID,
				"start_at", ev.StartAt,
			)
		default:
			span.RecordError(err)
			return inserted, fmt.Errorf("appointments: sync %s: %w", ev.ID, err)
		}
	}

	l.logger.Info("external calendar synced", "user_id", userID, "events", len(external), "inserted", inserted)
	return inserted, nil
}

func (l *Ledger) record(ctx context.Context, userID, eventType string, payload any) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.Record(ctx, userID, eventType, payload); err != nil {
		l.logger.Warn("failed to record appointment event", "type", eventType, "user_id", userID, "error", err)
	}
}

// Package calendarsync imports events from a professional's Google Calendar
// into the appointment ledger.
package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/calendar"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// DefaultWindow is how far ahead events are imported.
const DefaultWindow = 30 * 24 * time.Hour

// EventLister reads calendar events.
type EventLister interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error)
}

// CalendarOpener opens the calendar behind an access token.
type CalendarOpener func(ctx context.Context, accessToken string) (EventLister, error)

// GoogleCalendars opens calendars through factory.
func GoogleCalendars(factory *calendar.Factory) CalendarOpener {
	return func(ctx context.Context, accessToken string) (EventLister, error) {
		client, err := factory.ForToken(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Ledger receives the imported events.
type Ledger interface {
	SyncFromExternalCalendar(ctx context.Context, userID string, external []appointments.ExternalEvent) (int, error)
}

type Service struct {
	users  users.Repository
	open   CalendarOpener
	ledger Ledger
	window time.Duration
	now    func() time.Time
	logger *logging.Logger
}

func NewService(directory users.Repository, open CalendarOpener, ledger Ledger, logger *logging.Logger) *Service {
	if directory == nil || open == nil || ledger == nil {
		panic("calendarsync: users, calendar opener and ledger are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		users:  directory,
		open:   open,
		ledger: ledger,
		window: DefaultWindow,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Sync imports the timed events of the next 30 days and returns how many new
// appointments were created. All-day events are not appointments and are
// skipped.
func (s *Service) Sync(ctx context.Context, userID string) (int, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	cal, err := s.open(ctx, user.GoogleCalendarToken)
	if errors.Is(err, calendar.ErrNoToken) {
		verr := apperrors.NewValidationError()
		verr.Add("google_calendar_token", "calendar not connected")
		return 0, verr
	}
	if err != nil {
		return 0, fmt.Errorf("calendarsync: open calendar: %w", err)
	}

	now := s.now()
	events, err := cal.ListEvents(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("calendarsync: list events: %w", err)
	}

	external := make([]appointments.ExternalEvent, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		external = append(external, appointments.ExternalEvent{
			ID:      ev.ID,
			Summary: ev.Summary,
			StartAt: ev.Start,
			EndAt:   ev.End,
		})
	}

	n, err := s.ledger.SyncFromExternalCalendar(ctx, user.ID, external)
	if err != nil {
		return n, err
	}
	s.logger.Info("calendar sync finished", "user_id", user.ID, "listed", len(events), "synced", n)
	return n, nil
}

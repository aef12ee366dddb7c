// Package calendar adapts Google Calendar to the scheduling core.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/availability"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

const serviceName = "google_calendar"

var calendarTracer = otel.Tracer("agenda.internal.calendar")

// ErrNoToken is returned when a professional has not connected a calendar.
var ErrNoToken = errors.New("calendar: no access token")

// Event is a calendar entry read back from Google.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// EventInput describes an event to create or patch. Zero fields are left out
// of patches.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// Config holds the OAuth app and call settings shared by every professional.
type Config struct {
	ClientID     string
	ClientSecret string
	CalendarID   string
	Timeout      time.Duration
}

// Factory builds a Client per professional access token.
type Factory struct {
	oauth      *oauth2.Config
	calendarID string
	timeout    time.Duration
	logger     *logging.Logger
	opts       []option.ClientOption
}

// NewFactory prepares clients for cfg. Extra options are appended to every
// service, which lets tests point at a local server.
func NewFactory(cfg Config, logger *logging.Logger, opts ...option.ClientOption) *Factory {
	if logger == nil {
		logger = logging.Default()
	}
	calendarID := strings.TrimSpace(cfg.CalendarID)
	if calendarID == "" {
		calendarID = "primary"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Factory{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		},
		calendarID: calendarID,
		timeout:    timeout,
		logger:     logger,
		opts:       opts,
	}
}

// ForToken returns a client acting with accessToken.
func (f *Factory) ForToken(ctx context.Context, accessToken string) (*Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrNoToken
	}
	ts := f.oauth.TokenSource(ctx, &oauth2.Token{AccessToken: accessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: new service: %w", err)
	}
	return &Client{svc: svc, calendarID: f.calendarID, timeout: f.timeout, logger: f.logger}, nil
}

// Client talks to one professional's calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
	timeout    time.Duration
	logger     *logging.Logger
}

// ListEvents returns the single (expanded) events in [timeMin, timeMax)
// ordered by start. Cancelled events are left out.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	ctx, span := calendarTracer.Start(ctx, "calendar.list_events")
	defer span.End()

	var out []Event
	err := c.read(ctx, func(callCtx context.Context) error {
		out = out[:0]
		call := c.svc.Events.List(c.calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime")
		return call.Pages(callCtx, func(page *gcal.Events) error {
			loc := locationOf(page.TimeZone)
			for _, item := range page.Items {
				if item.Status == "cancelled" {
					continue
				}
				ev, ok := toEvent(item, loc)
				if !ok {
					c.logger.Warn("skipping calendar event with unreadable times", "event_id", item.Id)
					continue
				}
				out = append(out, ev)
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.External(serviceName, "list_events", err)
	}
	span.SetAttributes(attribute.Int("agenda.calendar.events", len(out)))
	return out, nil
}

// ListBusyIntervals reports every event overlapping [timeMin, timeMax) as busy.
func (c *Client) ListBusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error) {
	events, err := c.ListEvents(ctx, timeMin, timeMax)
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(events))
	for _, ev := range events {
		busy = append(busy, availability.Interval{Start: ev.Start, End: ev.End})
	}
	return busy, nil
}

// CreateEvent inserts an event and returns its id. It is not retried.
func (c *Client) CreateEvent(ctx context.Context, in EventInput) (string, error) {
	ctx, span := calendarTracer.Start(ctx, "calendar.create_event")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ev := &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       eventTime(in.Start, in.TimeZone),
		End:         eventTime(in.End, in.TimeZone),
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, email := range in.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(callCtx).Do()
	if err != nil {
		span.RecordError(err)
		return "", apperrors.External(serviceName, "create_event", err)
	}
	span.SetAttributes(attribute.String("agenda.calendar.event_id", created.Id))
	return created.Id, nil
}

// UpdateEvent patches the non-zero fields of in onto event id.
func (c *Client) UpdateEvent(ctx context.Context, id string, in EventInput) error {
	ctx, span := calendarTracer.Start(ctx, "calendar.update_event")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	patch := &gcal.Event{Summary: in.Summary, Description: in.Description}
	if !in.Start.IsZero() {
		patch.Start = eventTime(in.Start, in.TimeZone)
	}
	if !in.End.IsZero() {
		patch.End = eventTime(in.End, in.TimeZone)
	}
	if _, err := c.svc.Events.Patch(c.calendarID, id, patch).Context(callCtx).Do(); err != nil {
		span.RecordError(err)
		return apperrors.External(serviceName, "update_event", err)
	}
	return nil
}

// CancelEvent deletes event id. An event that is already gone counts as
// cancelled.
func (c *Client) CancelEvent(ctx context.Context, id string) error {
	ctx, span := calendarTracer.Start(ctx, "calendar.cancel_event")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.svc.Events.Delete(c.calendarID, id).Context(callCtx).Do()
	if err != nil && !isGone(err) {
		span.RecordError(err)
		return apperrors.External(serviceName, "cancel_event", err)
	}
	return nil
}

// read runs an idempotent call with the per-call timeout and retries once
// when only the call itself timed out.
func (c *Client) read(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil || !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return err
		}
		c.logger.Warn("calendar read timed out, retrying", "attempt", attempt+1)
	}
	return err
}

func toEvent(item *gcal.Event, loc *time.Location) (Event, bool) {
	if item.Start == nil || item.End == nil {
		return Event{}, false
	}
	ev := Event{ID: item.Id, Summary: item.Summary}
	if item.Start.DateTime != "" {
		start, err1 := time.Parse(time.RFC3339, item.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, item.End.DateTime)
		if err1 != nil || err2 != nil {
			return Event{}, false
		}
		ev.Start, ev.End = start, end
		return ev, true
	}
	start, err1 := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
	end, err2 := time.ParseInLocation("2006-01-02", item.End.Date, loc)
	if err1 != nil || err2 != nil {
		return Event{}, false
	}
	ev.Start, ev.End, ev.AllDay = start, end, true
	return ev, true
}

func eventTime(t time.Time, tz string) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: tz}
}

func locationOf(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/appointments"
)

const (
	// ConfidenceThreshold must be strictly exceeded for a transactional intent.
	ConfidenceThreshold = 0.7

	proposalLimit     = 3
	proposalDaysAhead = 7
)

// ActiveLookup finds the client's nearest confirmed appointment at or after now.
type ActiveLookup interface {
	FindNearestActive(ctx context.Context, userID, clientPhone string, now time.Time) (*appointments.Appointment, error)
}

// Router turns an intent into an Action. It performs no side effects besides
// the active appointment lookup.
type Router struct {
	lookup ActiveLookup
}

// NewRouter builds a router over lookup.
func NewRouter(lookup ActiveLookup) *Router {
	if lookup == nil {
		panic("intent: active lookup required")
	}
	return &Router{lookup: lookup}
}

// Route applies the routing policy in priority order: book, cancel,
// reschedule, then conversational reply.
func (r *Router) Route(ctx context.Context, in Input) (Action, error) {
	if in.Intent.Confidence <= ConfidenceThreshold {
		return ConversationalReply{}, nil
	}

	switch in.Intent.Category {
	case CategoryBook:
		start, ok := ParseDateTime(in.Extraction.Date, in.Extraction.Time, in.Settings.Location)
		if !ok || in.Settings.AppointmentDuration <= 0 {
			return ProposeSlots{Limit: proposalLimit, DaysAhead: proposalDaysAhead}, nil
		}
		return CreateAppointment{
			Start:      start,
			End:        start.Add(in.Settings.AppointmentDuration),
			ClientName: strings.TrimSpace(in.Extraction.ClientName),
		}, nil

	case CategoryCancel, CategoryReschedule:
		appt, err := r.lookup.FindNearestActive(ctx, in.UserID, in.ClientPhone, in.Now)
		if err != nil {
			return nil, fmt.Errorf("intent: find nearest active: %w", err)
		}
		reschedule := in.Intent.Category == CategoryReschedule
		if appt == nil {
			return NoActiveAppointment{Reschedule: reschedule}, nil
		}
		if reschedule {
			return ProposeSlots{Limit: proposalLimit, DaysAhead: proposalDaysAhead, Reschedule: appt}, nil
		}
		return CancelAppointment{Appointment: *appt}, nil
	}

	return ConversationalReply{}, nil
}

// ParseDateTime combines a YYYY-MM-DD date and an HH:MM time in loc.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SlotChoice reads a reply such as "2" or "opção 2" as a 1-based pick among
// offered slots. It returns the 0-based index.
func SlotChoice(text string, offered int) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range []string{"opção", "opcao", "op"} {
		text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
	}
	text = strings.TrimRight(text, ".!) ")
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > offered {
		return 0, false
	}
	return n - 1, true
}

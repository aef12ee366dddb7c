package appointments

import (
	"strings"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
)

// Status is the ledger-local lifecycle of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Active reports whether the status blocks the time slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}

// Appointment is the local record of a booked time slot.
type Appointment struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	ClientPhone     string     `json:"client_phone"`
	ClientName      string     `json:"client_name"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	Status          Status     `json:"status"`
	ExternalEventID string     `json:"external_event_id,omitempty"`
	RemindedAt      *time.Time `json:"reminded_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Overlaps reports whether the appointment's [start,end) intersects [start,end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartAt.Before(end) && start.Before(a.EndAt)
}

// NewAppointment is the input of Ledger.Create.
type NewAppointment struct {
	UserID          string
	ClientPhone     string
	ClientName      string
	StartAt         time.Time
	EndAt           time.Time
	ExternalEventID string
}

// Validate checks the required fields before any side effect.
func (n NewAppointment) Validate() error {
	verr := apperrors.NewValidationError()
	if strings.TrimSpace(n.UserID) == "" {
		verr.Add("user_id", "required")
	}
	if n.StartAt.IsZero() {
		verr.Add("start_at", "required")
	}
	if !n.EndAt.After(n.StartAt) {
		verr.Add("end_at", "must be after start_at")
	}
	return verr.OrNil()
}

// ExternalEvent is an event read from the professional's external calendar.
type ExternalEvent struct {
	ID      string
	Summary string
	StartAt time.Time
	EndAt   time.Time
}

// Package intent maps a classified client message to a booking action.
package intent

import (
	"strings"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/appointments"
)

// Category is the coarse intent of a client message.
type Category string

const (
	CategoryBook       Category = "book"
	CategoryCancel     Category = "cancel"
	CategoryReschedule Category = "reschedule"
	CategoryInform     Category = "inform"
	CategoryOther      Category = "other"
)

// ParseCategory normalises classifier labels. Portuguese labels are accepted
// alongside the English ones; anything unknown is CategoryOther.
func ParseCategory(label string) Category {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "book", "agendar":
		return CategoryBook
	case "cancel", "cancelar":
		return CategoryCancel
	case "reschedule", "reagendar":
		return CategoryReschedule
	case "inform", "informacao", "informação":
		return CategoryInform
	default:
		return CategoryOther
	}
}

// Result is the classifier output for a message.
type Result struct {
	Category   Category `json:"intent"`
	Confidence float64  `json:"confidence"`
}

// Fallback is used whenever classification fails.
var Fallback = Result{Category: CategoryOther, Confidence: 0}

// Extraction holds booking fields found in a message. Empty means absent.
type Extraction struct {
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	Time       string `json:"time,omitempty"` // HH:MM
	ClientName string `json:"clientName,omitempty"`
}

// Settings are the per-professional values the router needs.
type Settings struct {
	Location            *time.Location
	AppointmentDuration time.Duration
}

// Input is everything Route needs to decide.
type Input struct {
	Intent      Result
	Extraction  Extraction
	Settings    Settings
	UserID      string
	ClientPhone string
	Now         time.Time
}

// Kind tags an Action.
type Kind string

const (
	KindCreate         Kind = "create_appointment"
	KindPropose        Kind = "propose_slots"
	KindCancel         Kind = "cancel_appointment"
	KindNoActive       Kind = "no_active_appointment"
	KindConversational Kind = "conversational_reply"
)

// Action is the routing decision. It is one of CreateAppointment,
// ProposeSlots, CancelAppointment, NoActiveAppointment or ConversationalReply.
type Action interface {
	Kind() Kind
}

// CreateAppointment books [Start, End) for the client.
type CreateAppointment struct {
	Start      time.Time
	End        time.Time
	ClientName string
}

// ProposeSlots offers up to Limit free slots over the next DaysAhead days.
// Reschedule is set when the offer replaces an existing appointment.
type ProposeSlots struct {
	Limit      int
	DaysAhead  int
	Reschedule *appointments.Appointment
}

// CancelAppointment cancels the client's nearest active appointment.
type CancelAppointment struct {
	Appointment appointments.Appointment
}

// NoActiveAppointment tells the client there is nothing to cancel or move.
type NoActiveAppointment struct {
	Reschedule bool
}

// ConversationalReply hands the message to the reply generator.
type ConversationalReply struct{}

func (CreateAppointment) Kind() Kind   { return KindCreate }
func (ProposeSlots) Kind() Kind        { return KindPropose }
func (CancelAppointment) Kind() Kind   { return KindCancel }
func (NoActiveAppointment) Kind() Kind { return KindNoActive }
func (ConversationalReply) Kind() Kind { return KindConversational }

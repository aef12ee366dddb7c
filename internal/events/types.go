package events

import "time"

const (
	TypeAppointmentBooked    = "appointment.booked"
	TypeAppointmentCancelled = "appointment.cancelled"
)

type AppointmentBookedV1 struct {
	EventID         string    `json:"event_id"`
	AppointmentID   string    `json:"appointment_id"`
	UserID          string    `json:"user_id"`
	ClientPhone     string    `json:"client_phone,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type AppointmentCancelledV1 struct {
	EventID         string    `json:"event_id"`
	AppointmentID   string    `json:"appointment_id"`
	UserID          string    `json:"user_id"`
	ClientPhone     string    `json:"client_phone,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
	StartAt         time.Time `json:"start_at"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

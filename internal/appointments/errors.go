package appointments

import "errors"

var (
	// ErrNotFound is returned when an appointment id does not exist.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrConflict is returned when a booking overlaps an active appointment of the same user.
	ErrConflict = errors.New("appointments: time slot conflicts with an existing appointment")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")

	// ErrDuplicateExternalEvent is returned when an external calendar event is already recorded.
	ErrDuplicateExternalEvent = errors.New("appointments: external event already recorded")
)

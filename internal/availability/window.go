package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWindow is returned when a window cannot produce slots at all.
var ErrInvalidWindow = errors.New("availability: invalid window")

// TimeOfDay is a wall-clock time without a date, e.g. business hours.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (and tolerates "HH:MM:SS" as stored by Postgres time columns).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("availability: parse time of day %q: expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return TimeOfDay{}, fmt.Errorf("availability: parse time of day %q: bad hour", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("availability: parse time of day %q: bad minute", raw)
	}
	if hour == 24 && minute != 0 {
		return TimeOfDay{}, fmt.Errorf("availability: parse time of day %q: past midnight", raw)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// On returns the instant this time of day falls on for the given date in loc.
func (t TimeOfDay) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Window describes the bookable hours of a professional.
type Window struct {
	Start        TimeOfDay
	End          TimeOfDay
	SlotDuration time.Duration
	DaysAhead    int
	Location     *time.Location
}

// NewWindow builds a Window from the stored "HH:MM" strings and a duration in minutes.
func NewWindow(start, end string, durationMinutes, daysAhead int, loc *time.Location) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{
		Start:        s,
		End:          e,
		SlotDuration: time.Duration(durationMinutes) * time.Minute,
		DaysAhead:    daysAhead,
		Location:     loc,
	}
	return w, w.Validate()
}

// Validate rejects windows that cannot be walked. An inverted day window is
// not an error: it simply yields no slots.
func (w Window) Validate() error {
	if w.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidWindow)
	}
	if w.DaysAhead < 0 {
		return fmt.Errorf("%w: days ahead must not be negative", ErrInvalidWindow)
	}
	return nil
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Interval is a half-open [Start, End) busy period.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start,end) intersects the interval.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

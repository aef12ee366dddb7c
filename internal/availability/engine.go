package availability

import (
	"context"
	"fmt"
	"time"
)

// BusyLookup reports the busy intervals of a calendar for a time range.
type BusyLookup interface {
	ListBusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error)
}

// BusyLookupFunc adapts a function to BusyLookup.
type BusyLookupFunc func(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error)

func (f BusyLookupFunc) ListBusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]Interval, error) {
	return f(ctx, timeMin, timeMax)
}

type findOptions struct {
	limit int
}

// Option tunes FindAvailableSlots.
type Option func(*findOptions)

// WithLimit stops the walk once n slots were found. n <= 0 means no limit.
func WithLimit(n int) Option {
	return func(o *findOptions) {
		o.limit = n
	}
}

// FindAvailableSlots walks the next w.DaysAhead days starting at the day of
// from, skipping Saturdays and Sundays in the window location, and returns the
// start instants of every slot that fits inside business hours and has no busy
// interval overlapping it. Each candidate costs exactly one lookup call; calls
// are sequential. Slots that start before from are not offered.
func FindAvailableSlots(ctx context.Context, from time.Time, w Window, lookup BusyLookup, opts ...Option) ([]time.Time, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, fmt.Errorf("availability: busy lookup is required")
	}
	o := findOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	loc := w.location()
	local := from.In(loc)
	var slots []time.Time
	for i := 0; i < w.DaysAhead; i++ {
		day := time.Date(local.Year(), local.Month(), local.Day()+i, 0, 0, 0, 0, loc)
		if isWeekend(day) {
			continue
		}
		dayStart := w.Start.On(day.Year(), day.Month(), day.Day(), loc)
		dayEnd := w.End.On(day.Year(), day.Month(), day.Day(), loc)
		if !dayStart.Before(dayEnd) {
			continue
		}

		for slot := dayStart; slot.Before(dayEnd); slot = slot.Add(w.SlotDuration) {
			slotEnd := slot.Add(w.SlotDuration)
			if slotEnd.After(dayEnd) {
				break
			}
			if slot.Before(from) {
				continue
			}
			free, err := isFree(ctx, lookup, slot, slotEnd)
			if err != nil {
				return nil, err
			}
			if !free {
				continue
			}
			slots = append(slots, slot)
			if o.limit > 0 && len(slots) >= o.limit {
				return slots, nil
			}
		}
	}
	return slots, nil
}

func isFree(ctx context.Context, lookup BusyLookup, start, end time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("availability: %w", err)
	}
	busy, err := lookup.ListBusyIntervals(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("availability: busy lookup %s: %w", start.Format(time.RFC3339), err)
	}
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

package appointments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments. Insert must reject overlapping active
// appointments of the same user atomically with ErrConflict.
type Repository interface {
	Insert(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	HasActiveOverlap(ctx context.Context, userID string, start, end time.Time) (bool, error)
	// UpdateStatus moves id to status "to" only when its current status is in
	// "from". It reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, to Status, from ...Status) (bool, error)
	FindNearestActive(ctx context.Context, userID, clientPhone string, now time.Time) (*Appointment, error)
	ExternalEventExists(ctx context.Context, userID, externalEventID string) (bool, error)
	ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]Appointment, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
	CompleteEndedBefore(ctx context.Context, now time.Time) (int, error)
}

// InMemoryRepository is a Repository for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	appts map[string]*Appointment
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appts: make(map[string]*Appointment),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Insert(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.Status.Active() && r.overlapLocked(appt.UserID, appt.StartAt, appt.EndAt) {
		return ErrConflict
	}
	if appt.ExternalEventID != "" && r.externalLocked(appt.UserID, appt.ExternalEventID) {
		return ErrDuplicateExternalEvent
	}
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	now := r.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	stored := *appt
	r.appts[appt.ID] = &stored
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

func (r *InMemoryRepository) HasActiveOverlap(ctx context.Context, userID string, start, end time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overlapLocked(userID, start, end), nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, to Status, from ...Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, s := range from {
		if appt.Status == s {
			appt.Status = to
			appt.UpdatedAt = r.now()
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) FindNearestActive(ctx context.Context, userID, clientPhone string, now time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Appointment
	for _, appt := range r.appts {
		if appt.UserID != userID || appt.ClientPhone != clientPhone || appt.Status != StatusConfirmed {
			continue
		}
		if appt.StartAt.Before(now) {
			continue
		}
		if best == nil || appt.StartAt.Before(best.StartAt) {
			best = appt
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (r *InMemoryRepository) ExternalEventExists(ctx context.Context, userID, externalEventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.externalLocked(userID, externalEventID), nil
}

func (r *InMemoryRepository) ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, appt := range r.appts {
		if appt.Status != StatusConfirmed || appt.RemindedAt != nil || strings.TrimSpace(appt.ClientPhone) == "" {
			continue
		}
		if appt.StartAt.Before(from) || !appt.StartAt.Before(to) {
			continue
		}
		out = append(out, *appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return ErrNotFound
	}
	reminded := at
	appt.RemindedAt = &reminded
	appt.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) CompleteEndedBefore(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, appt := range r.appts {
		if appt.Status == StatusConfirmed && !appt.EndAt.After(now) {
			appt.Status = StatusCompleted
			appt.UpdatedAt = r.now()
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) overlapLocked(userID string, start, end time.Time) bool {
	for _, appt := range r.appts {
		if appt.UserID == userID && appt.Status.Active() && appt.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) externalLocked(userID, externalEventID string) bool {
	for _, appt := range r.appts {
		if appt.UserID == userID && appt.ExternalEventID == externalEventID {
			return true
		}
	}
	return false
}

package calendarsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/calendar"
	"github.com/rafamhanel/web-app-agenda/internal/users"
)

var now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeLister struct {
	events   []calendar.Event
	err      error
	min, max time.Time
}

func (f *fakeLister) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error) {
	f.min, f.max = timeMin, timeMax
	return f.events, f.err
}

func newService(t *testing.T, lister *fakeLister) *Service {
	t.Helper()
	ledger := appointments.NewLedger(appointments.NewInMemoryRepository(), nil)
	directory := users.NewInMemoryRepository(
		users.User{ID: "u1", GoogleCalendarToken: "tok"},
		users.User{ID: "u2"},
	)
	open := func(_ context.Context, token string) (EventLister, error) {
		if token == "" {
			return nil, calendar.ErrNoToken
		}
		return lister, nil
	}
	svc := NewService(directory, open, ledger, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSyncImportsTimedEvents(t *testing.T) {
	lister := &fakeLister{events: []calendar.Event{
		{ID: "e1", Summary: "Consulta Maria", Start: now.Add(24 * time.Hour), End: now.Add(25 * time.Hour)},
		{ID: "e2", Start: now.Add(48 * time.Hour), End: now.Add(49 * time.Hour)},
		{ID: "e3", Summary: "Feriado", Start: now, End: now.Add(24 * time.Hour), AllDay: true},
	}}
	svc := newService(t, lister)

	n, err := svc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, now, lister.min)
	assert.Equal(t, now.Add(DefaultWindow), lister.max)

	n, err = svc.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n, "sync is idempotent")

}

func TestSyncErrors(t *testing.T) {
	lister := &fakeLister{err: errors.New("403")}
	svc := newService(t, lister)

	_, err := svc.Sync(context.Background(), "missing")
	assert.ErrorIs(t, err, users.ErrUserNotFound)

	_, err = svc.Sync(context.Background(), "u2")
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Sync(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendarsync: list events")
}

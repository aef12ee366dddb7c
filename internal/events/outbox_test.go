package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "user-1", TypeAppointmentBooked, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Record(context.Background(), "user-1", TypeAppointmentBooked, AppointmentBookedV1{AppointmentID: "a-1"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "user_id", "type", "payload", "created_at"}).AddRow(id, "user-1", TypeAppointmentBooked, []byte(`{"appointment_id":"a-1"}`), now)
	mock.ExpectQuery("SELECT id, user_id, type, payload, created_at").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].UserID != "user-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type memoryPending struct {
	entries   []OutboxEntry
	delivered map[uuid.UUID]bool
}

func (m *memoryPending) FetchPending(_ context.Context, _ int32) ([]OutboxEntry, error) {
	var out []OutboxEntry
	for _, e := range m.entries {
		if !m.delivered[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryPending) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	if m.delivered[id] {
		return false, nil
	}
	m.delivered[id] = true
	return true, nil
}

type handlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f handlerFunc) Handle(ctx context.Context, entry OutboxEntry) error { return f(ctx, entry) }

func TestDelivererDrainSkipsFailedEntries(t *testing.T) {
	okID, badID := uuid.New(), uuid.New()
	store := &memoryPending{
		entries: []OutboxEntry{
			{ID: okID, Type: TypeAppointmentBooked},
			{ID: badID, Type: TypeAppointmentCancelled},
		},
		delivered: map[uuid.UUID]bool{},
	}
	handler := handlerFunc(func(_ context.Context, entry OutboxEntry) error {
		if entry.ID == badID {
			return errors.New("broker unavailable")
		}
		return nil
	})

	d := newDeliverer(store, handler, nil)
	if got := d.Drain(context.Background()); got != 1 {
		t.Fatalf("expected 1 delivered, got %d", got)
	}
	if !store.delivered[okID] || store.delivered[badID] {
		t.Fatalf("unexpected delivery state: %#v", store.delivered)
	}
}

func TestFanoutHandlerJoinsErrors(t *testing.T) {
	calls := 0
	ok := handlerFunc(func(context.Context, OutboxEntry) error { calls++; return nil })
	boom := errors.New("smtp down")
	bad := handlerFunc(func(context.Context, OutboxEntry) error { calls++; return boom })

	err := FanoutHandler{ok, nil, bad}.Handle(context.Background(), OutboxEntry{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers called, got %d", calls)
	}
}

package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresExampleStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := newPostgresExampleStoreWithQuerier(mock)

	mock.ExpectExec("INSERT INTO training_examples").
		WithArgs(pgxmock.AnyArg(), "user-1", "Quanto custa?", "R$ 150", pgxmock.AnyArg(), "user-1", "Onde fica?", "Centro").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	require.NoError(t, store.Add(context.Background(), "user-1", []TrainingExample{
		{Message: " Quanto custa? ", Response: "R$ 150"},
		{Message: "Onde fica?", Response: "Centro"},
	}))

	id := uuid.New()
	created := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM training_examples").
		WithArgs("user-1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "example_message", "example_response", "created_at"}).
			AddRow(id, "user-1", "Quanto custa?", "R$ 150", created))

	got, err := store.List(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id.String(), got[0].ID)
	assert.Equal(t, "R$ 150", got[0].Response)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExampleStoreRejectsBlank(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = newPostgresExampleStoreWithQuerier(mock).Add(context.Background(), "user-1", []TrainingExample{{Message: "", Response: "x"}})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryExampleStoreKeepsNewest(t *testing.T) {
	store := NewMemoryExampleStore()
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, store.Add(context.Background(), "u", []TrainingExample{{Message: m, Response: m}}))
	}
	got, err := store.List(context.Background(), "u", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Message)
	assert.Equal(t, "c", got[1].Message)
}

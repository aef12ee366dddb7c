package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
)

// TrainingExample is a sample exchange written by the professional.
type TrainingExample struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ValidateExamples rejects empty batches and blank fields.
func ValidateExamples(examples []TrainingExample) error {
	verr := apperrors.NewValidationError()
	if len(examples) == 0 {
		verr.Add("examples", "at least one example is required")
	}
	for i, ex := range examples {
		if strings.TrimSpace(ex.Message) == "" {
			verr.Add(fmt.Sprintf("examples[%d].message", i), "required")
		}
		if strings.TrimSpace(ex.Response) == "" {
			verr.Add(fmt.Sprintf("examples[%d].response", i), "required")
		}
	}
	return verr.OrNil()
}

// ExampleStore persists training examples per professional.
type ExampleStore interface {
	Add(ctx context.Context, userID string, examples []TrainingExample) error
	// List returns the newest examples, up to limit.
	List(ctx context.Context, userID string, limit int) ([]TrainingExample, error)
}

// MemoryExampleStore keeps examples in process.
type MemoryExampleStore struct {
	mu     sync.RWMutex
	byUser map[string][]TrainingExample
}

func NewMemoryExampleStore() *MemoryExampleStore {
	return &MemoryExampleStore{byUser: make(map[string][]TrainingExample)}
}

func (s *MemoryExampleStore) Add(_ context.Context, userID string, examples []TrainingExample) error {
	if err := ValidateExamples(examples); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, ex := range examples {
		ex.ID = uuid.New().String()
		ex.UserID = userID
		ex.CreatedAt = now
		s.byUser[userID] = append(s.byUser[userID], ex)
	}
	return nil
}

func (s *MemoryExampleStore) List(_ context.Context, userID string, limit int) ([]TrainingExample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.byUser[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]TrainingExample, len(all))
	copy(out, all)
	return out, nil
}

type exampleQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresExampleStore stores examples in the training_examples table.
type PostgresExampleStore struct {
	db exampleQuerier
}

func NewPostgresExampleStore(pool *pgxpool.Pool) *PostgresExampleStore {
	if pool == nil {
		panic("assistant: pgx pool required")
	}
	return &PostgresExampleStore{db: pool}
}

func newPostgresExampleStoreWithQuerier(db exampleQuerier) *PostgresExampleStore {
	return &PostgresExampleStore{db: db}
}

// Add inserts the batch in one statement.
func (s *PostgresExampleStore) Add(ctx context.Context, userID string, examples []TrainingExample) error {
	if err := ValidateExamples(examples); err != nil {
		return err
	}
	var (
		values []string
		args   []any
	)
	for i, ex := range examples {
		n := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
		args = append(args, uuid.New(), userID, strings.TrimSpace(ex.Message), strings.TrimSpace(ex.Response))
	}
	query := `INSERT INTO training_examples (id, user_id, example_message, example_response) VALUES ` + strings.Join(values, ", ")
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("assistant: insert training examples: %w", err)
	}
	return nil
}

// List returns the newest examples in insertion order.
func (s *PostgresExampleStore) List(ctx context.Context, userID string, limit int) ([]TrainingExample, error) {
	if limit <= 0 {
		limit = maxFewShot
	}
	query := `
		SELECT id, user_id, example_message, example_response, created_at FROM (
			SELECT id, user_id, example_message, example_response, created_at
			FROM training_examples
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("assistant: list training examples: %w", err)
	}
	defer rows.Close()

	var out []TrainingExample
	for rows.Next() {
		var (
			ex TrainingExample
			id uuid.UUID
		)
		if err := rows.Scan(&id, &ex.UserID, &ex.Message, &ex.Response, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("assistant: scan training example: %w", err)
		}
		ex.ID = id.String()
		out = append(out, ex)
	}
	return out, rows.Err()
}

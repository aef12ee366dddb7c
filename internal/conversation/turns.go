package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafamhanel/web-app-agenda/internal/assistant"
)

// Direction tells who wrote a turn.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Turn is one message exchanged with a client. Turns are never updated.
type Turn struct {
	ID          string
	UserID      string
	ClientPhone string
	Body        string
	Direction   Direction
	Automated   bool
	CreatedAt   time.Time
}

// TurnStore persists conversation turns.
type TurnStore interface {
	Append(ctx context.Context, turn *Turn) error
	// Recent returns at most limit turns, oldest first.
	Recent(ctx context.Context, userID, clientPhone string, limit int) ([]Turn, error)
}

// ToChatMessages maps turns to model roles: inbound is the user, outbound the
// assistant. The turn with skipID is left out. A window cut by count can open
// on an outbound turn or hold two inbound turns in a row (an unsent reply),
// so the result is shaped with assistant.AlternateTurns.
func ToChatMessages(turns []Turn, skipID string) []assistant.ChatMessage {
	out := make([]assistant.ChatMessage, 0, len(turns))
	for _, t := range turns {
		if skipID != "" && t.ID == skipID {
			continue
		}
		if strings.TrimSpace(t.Body) == "" {
			continue
		}
		role := assistant.ChatRoleAssistant
		if t.Direction == DirectionInbound {
			role = assistant.ChatRoleUser
		}
		out = append(out, assistant.ChatMessage{Role: role, Content: t.Body})
	}
	return assistant.AlternateTurns(out)
}

func prepareTurn(turn *Turn, now time.Time) error {
	if turn == nil {
		return fmt.Errorf("conversation: turn is nil")
	}
	if turn.UserID == "" || turn.ClientPhone == "" {
		return fmt.Errorf("conversation: turn requires user and client phone")
	}
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}
	return nil
}

// MemoryTurnStore keeps turns in process.
type MemoryTurnStore struct {
	mu    sync.Mutex
	turns []Turn
	now   func() time.Time
}

func NewMemoryTurnStore() *MemoryTurnStore {
	return &MemoryTurnStore{now: func() time.Time { return time.Now().UTC() }}
}

func (s *MemoryTurnStore) Append(_ context.Context, turn *Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Keep creation order stable for turns written within the same instant.
	now := s.now()
	if n := len(s.turns); n > 0 && !now.After(s.turns[n-1].CreatedAt) {
		now = s.turns[n-1].CreatedAt.Add(time.Microsecond)
	}
	if err := prepareTurn(turn, now); err != nil {
		return err
	}
	s.turns = append(s.turns, *turn)
	return nil
}

func (s *MemoryTurnStore) Recent(_ context.Context, userID, clientPhone string, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Turn
	for _, t := range s.turns {
		if t.UserID == userID && t.ClientPhone == clientPhone {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

type turnQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresTurnStore persists turns to the conversation_turns table.
type PostgresTurnStore struct {
	db turnQuerier
}

func NewPostgresTurnStore(pool *pgxpool.Pool) *PostgresTurnStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresTurnStore{db: pool}
}

func newPostgresTurnStoreWithQuerier(db turnQuerier) *PostgresTurnStore {
	return &PostgresTurnStore{db: db}
}

func (s *PostgresTurnStore) Append(ctx context.Context, turn *Turn) error {
	if err := prepareTurn(turn, time.Now().UTC()); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversation_turns (id, user_id, client_phone, body, direction, automated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, turn.ID, turn.UserID, turn.ClientPhone, turn.Body, string(turn.Direction), turn.Automated, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("conversation: insert turn: %w", err)
	}
	return nil
}

func (s *PostgresTurnStore) Recent(ctx context.Context, userID, clientPhone string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id::text, user_id::text, client_phone, body, direction, automated, created_at
		FROM (
			SELECT id, user_id, client_phone, body, direction, automated, created_at
			FROM conversation_turns
			WHERE user_id = $1 AND client_phone = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`, userID, clientPhone, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var direction string
		if err := rows.Scan(&t.ID, &t.UserID, &t.ClientPhone, &t.Body, &direction, &t.Automated, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		t.Direction = Direction(direction)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate turns: %w", err)
	}
	return turns, nil
}

package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderWhatsApp tags inbound WhatsApp message ids.
const ProviderWhatsApp = "whatsapp"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore records inbound provider messages that were already handled,
// so webhook retries do not trigger a second reply.
type ProcessedStore struct {
	pool execer
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec execer) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// MarkProcessed inserts a message id for the provider, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, messageID string) (bool, error) {
	query := `
		INSERT INTO processed_messages (provider, message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, messageID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Unmark removes a message id so a failed cycle can be retried by the provider.
func (s *ProcessedStore) Unmark(ctx context.Context, provider, messageID string) error {
	query := `DELETE FROM processed_messages WHERE provider = $1 AND message_id = $2`
	if _, err := s.pool.Exec(ctx, query, provider, messageID); err != nil {
		return fmt.Errorf("events: unmark processed: %w", err)
	}
	return nil
}

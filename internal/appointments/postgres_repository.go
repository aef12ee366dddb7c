package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
	pgInvalidText        = "22P02"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in Postgres. The no-overlap rule is
// backed by the appointments_no_overlap exclusion constraint.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db querier) *PostgresRepository {
	if db == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, user_id, client_phone, client_name, start_at, end_at, status, external_event_id, reminded_at, created_at, updated_at`

func (r *PostgresRepository) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	query := `
		INSERT INTO appointments (id, user_id, client_phone, client_name, start_at, end_at, status, external_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		appt.ID,
		appt.UserID,
		appt.ClientPhone,
		appt.ClientName,
		appt.StartAt,
		appt.EndAt,
		string(appt.Status),
		nullableText(appt.ExternalEventID),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if IsConflict(err) {
			return ErrConflict
		}
		if isUniqueViolation(err) {
			return ErrDuplicateExternalEvent
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidText {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) HasActiveOverlap(ctx context.Context, userID string, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE user_id = $1
			  AND status IN ('scheduled', 'confirmed')
			  AND start_at < $3
			  AND end_at > $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: check overlap: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, to Status, from ...Status) (bool, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	query := `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`
	ct, err := r.db.Exec(ctx, query, id, string(to), allowed)
	if err != nil {
		return false, fmt.Errorf("appointments: update status: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PostgresRepository) FindNearestActive(ctx context.Context, userID, clientPhone string, now time.Time) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1
		  AND client_phone = $2
		  AND status = 'confirmed'
		  AND start_at >= $3
		ORDER BY start_at ASC
		LIMIT 1
	`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, userID, clientPhone, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("appointments: find nearest active: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) ExternalEventExists(ctx context.Context, userID, externalEventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM appointments WHERE user_id = $1 AND external_event_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, externalEventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: check external event: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'confirmed'
		  AND reminded_at IS NULL
		  AND client_phone <> ''
		  AND start_at >= $1
		  AND start_at < $2
		ORDER BY start_at ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: list due reminders: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan reminder: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	ct, err := r.db.Exec(ctx, `UPDATE appointments SET reminded_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("appointments: mark reminded: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CompleteEndedBefore(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE appointments
		SET status = 'completed', updated_at = now()
		WHERE status = 'confirmed' AND end_at <= $1
	`
	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("appointments: complete ended: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt       Appointment
		status     string
		externalID *string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.UserID,
		&appt.ClientPhone,
		&appt.ClientName,
		&appt.StartAt,
		&appt.EndAt,
		&status,
		&externalID,
		&appt.RemindedAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	if externalID != nil {
		appt.ExternalEventID = *externalID
	}
	return &appt, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsConflict reports whether err is an exclusion constraint violation.
func IsConflict(err error) bool {
	return pgCode(err) == pgExclusionViolation
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

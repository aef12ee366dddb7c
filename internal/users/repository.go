package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads professional accounts.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByWhatsAppPhoneNumberID(ctx context.Context, phoneNumberID string) (*User, error)
}

// InMemoryRepository serves users from a map.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryRepository(seed ...User) *InMemoryRepository {
	r := &InMemoryRepository{users: make(map[string]User)}
	for _, u := range seed {
		r.users[u.ID] = u
	}
	return r
}

// Put adds or replaces a user.
func (r *InMemoryRepository) Put(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := u.WithDefaults()
	return &out, nil
}

func (r *InMemoryRepository) GetByWhatsAppPhoneNumberID(_ context.Context, phoneNumberID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if phoneNumberID != "" && u.WhatsAppPhoneNumberID == phoneNumberID {
			out := u.WithDefaults()
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads the users table.
type PostgresRepository struct {
	db rowQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id::text, name, email, COALESCE(whatsapp_phone_number_id, ''), COALESCE(whatsapp_display_phone, ''),
	COALESCE(whatsapp_token, ''), COALESCE(google_calendar_token, ''), COALESCE(tone_of_voice, ''),
	business_hours_start, business_hours_end, appointment_duration, timezone`

func (r *PostgresRepository) Get(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByWhatsAppPhoneNumberID(ctx context.Context, phoneNumberID string) (*User, error) {
	if strings.TrimSpace(phoneNumberID) == "" {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE whatsapp_phone_number_id = $1`, phoneNumberID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.WhatsAppPhoneNumberID,
		&u.WhatsAppDisplayPhone,
		&u.WhatsAppToken,
		&u.GoogleCalendarToken,
		&u.ToneOfVoice,
		&u.BusinessHoursStart,
		&u.BusinessHoursEnd,
		&u.AppointmentDuration,
		&u.Timezone,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: get: %w", err)
	}
	u = u.WithDefaults()
	return &u, nil
}

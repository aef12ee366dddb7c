package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

const defaultCacheTTL = 5 * time.Minute

// CachedRepository keeps recently loaded users in Redis. Cache failures fall
// through to the wrapped repository. Access tokens never reach Redis in
// clear: they are sealed with the cache key, and users holding tokens are
// not cached at all when no key is configured.
type CachedRepository struct {
	next   Repository
	redis  *redis.Client
	ttl    time.Duration
	sealer *tokenSealer
	logger *logging.Logger
}

// CacheOption tunes a CachedRepository.
type CacheOption func(*CachedRepository)

// WithTokenKey seals cached access tokens with a key derived from secret.
// A blank secret leaves tokens out of the cache.
func WithTokenKey(secret string) CacheOption {
	return func(c *CachedRepository) {
		if secret == "" {
			return
		}
		s, err := newTokenSealer(secret)
		if err != nil {
			panic(fmt.Sprintf("users: token sealer: %v", err))
		}
		c.sealer = s
	}
}

func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger *logging.Logger, opts ...CacheOption) *CachedRepository {
	if next == nil || client == nil {
		panic("users: repository and redis client required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &CachedRepository{next: next, redis: client, ttl: ttl, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func idKey(id string) string         { return fmt.Sprintf("users:id:%s", id) }
func phoneKey(phoneID string) string { return fmt.Sprintf("users:wa:%s", phoneID) }

func (c *CachedRepository) Get(ctx context.Context, id string) (*User, error) {
	return c.cached(ctx, idKey(id), func() (*User, error) { return c.next.Get(ctx, id) })
}

func (c *CachedRepository) GetByWhatsAppPhoneNumberID(ctx context.Context, phoneNumberID string) (*User, error) {
	return c.cached(ctx, phoneKey(phoneNumberID), func() (*User, error) {
		return c.next.GetByWhatsAppPhoneNumberID(ctx, phoneNumberID)
	})
}

// cacheEntry is the Redis value. User has its tokens cleared; Tokens holds
// them sealed.
type cacheEntry struct {
	User   User   `json:"user"`
	Tokens []byte `json:"tokens,omitempty"`
}

type accessTokens struct {
	WhatsApp string `json:"whatsapp"`
	Google   string `json:"google"`
}

func (c *CachedRepository) cached(ctx context.Context, key string, load func() (*User, error)) (*User, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if u, ok := c.decode(data); ok {
			return u, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("user cache read failed", "key", key, "error", err)
	}

	u, err := load()
	if err != nil {
		return nil, err
	}
	data, ok, err := c.encode(u)
	if err != nil {
		c.logger.Warn("user cache encode failed", "key", key, "error", err)
		return u, nil
	}
	if ok {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("user cache write failed", "key", key, "error", err)
		}
	}
	return u, nil
}

// encode reports false when u must not be cached.
func (c *CachedRepository) encode(u *User) ([]byte, bool, error) {
	entry := cacheEntry{User: *u}
	entry.User.WhatsAppToken = ""
	entry.User.GoogleCalendarToken = ""

	if u.WhatsAppToken != "" || u.GoogleCalendarToken != "" {
		if c.sealer == nil {
			return nil, false, nil
		}
		plain, err := json.Marshal(accessTokens{WhatsApp: u.WhatsAppToken, Google: u.GoogleCalendarToken})
		if err != nil {
			return nil, false, err
		}
		if entry.Tokens, err = c.sealer.seal(plain, []byte(u.ID)); err != nil {
			return nil, false, err
		}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// decode reports false for entries that cannot be used; the caller reloads.
func (c *CachedRepository) decode(data []byte) (*User, bool) {
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.User.ID == "" {
		return nil, false
	}
	u := entry.User
	if len(entry.Tokens) == 0 {
		return &u, true
	}
	if c.sealer == nil {
		return nil, false
	}
	plain, err := c.sealer.open(entry.Tokens, []byte(u.ID))
	if err != nil {
		c.logger.Warn("user cache tokens unreadable", "user_id", u.ID, "error", err)
		return nil, false
	}
	var tokens accessTokens
	if err := json.Unmarshal(plain, &tokens); err != nil {
		return nil, false
	}
	u.WhatsAppToken = tokens.WhatsApp
	u.GoogleCalendarToken = tokens.Google
	return &u, true
}

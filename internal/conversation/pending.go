package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafamhanel/web-app-agenda/internal/intent"
)

const pendingReplyTTL = 24 * time.Hour

// PendingReply is a composed reply whose send failed. The provider redelivers
// the inbound message, and the redelivery sends this reply instead of
// running the cycle again: the booking or cancel already happened.
type PendingReply struct {
	Body          string      `json:"body"`
	Action        intent.Kind `json:"action"`
	AppointmentID string      `json:"appointment_id,omitempty"`
}

// PendingReplyStore keeps unsent replies keyed by the inbound message id.
type PendingReplyStore interface {
	Save(ctx context.Context, userID, messageID string, reply *PendingReply) error
	// Load returns nil when nothing is pending.
	Load(ctx context.Context, userID, messageID string) (*PendingReply, error)
	Clear(ctx context.Context, userID, messageID string) error
}

// RedisPendingReplyStore stores pending replies as JSON for a day, longer
// than the WhatsApp redelivery window.
type RedisPendingReplyStore struct {
	redis *redis.Client
}

func NewRedisPendingReplyStore(client *redis.Client) *RedisPendingReplyStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisPendingReplyStore{redis: client}
}

func pendingKey(userID, messageID string) string {
	return fmt.Sprintf("pending_reply:%s:%s", userID, messageID)
}

func (s *RedisPendingReplyStore) Save(ctx context.Context, userID, messageID string, reply *PendingReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("conversation: marshal pending reply: %w", err)
	}
	if err := s.redis.Set(ctx, pendingKey(userID, messageID), data, pendingReplyTTL).Err(); err != nil {
		return fmt.Errorf("conversation: save pending reply: %w", err)
	}
	return nil
}

func (s *RedisPendingReplyStore) Load(ctx context.Context, userID, messageID string) (*PendingReply, error) {
	data, err := s.redis.Get(ctx, pendingKey(userID, messageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: load pending reply: %w", err)
	}
	var reply PendingReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("conversation: decode pending reply: %w", err)
	}
	return &reply, nil
}

func (s *RedisPendingReplyStore) Clear(ctx context.Context, userID, messageID string) error {
	if err := s.redis.Del(ctx, pendingKey(userID, messageID)).Err(); err != nil {
		return fmt.Errorf("conversation: clear pending reply: %w", err)
	}
	return nil
}

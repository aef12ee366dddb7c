package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const offerTTL = 24 * time.Hour

// SlotOffer is the list of slots last proposed to a client. When the offer
// came from a reschedule request, RescheduleID names the appointment to
// release once one of the new slots is booked.
type SlotOffer struct {
	Slots        []time.Time `json:"slots"`
	RescheduleID string      `json:"reschedule_id,omitempty"`
	OfferedAt    time.Time   `json:"offered_at"`
}

// OfferStore keeps the pending offer per (user, client).
type OfferStore interface {
	Save(ctx context.Context, userID, clientPhone string, offer *SlotOffer) error
	// Load returns nil when no offer is pending.
	Load(ctx context.Context, userID, clientPhone string) (*SlotOffer, error)
	Clear(ctx context.Context, userID, clientPhone string) error
}

// RedisOfferStore stores offers as JSON with a 24h TTL.
type RedisOfferStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisOfferStore(client *redis.Client) *RedisOfferStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisOfferStore{redis: client, tracer: tracer}
}

func offerKey(userID, clientPhone string) string {
	return fmt.Sprintf("slot_offer:%s:%s", userID, clientPhone)
}

func (s *RedisOfferStore) Save(ctx context.Context, userID, clientPhone string, offer *SlotOffer) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_offer")
	defer span.End()

	if offer == nil || len(offer.Slots) == 0 {
		return s.Clear(ctx, userID, clientPhone)
	}
	data, err := json.Marshal(offer)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal offer: %w", err)
	}
	if err := s.redis.Set(ctx, offerKey(userID, clientPhone), data, offerTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist offer: %w", err)
	}
	return nil
}

func (s *RedisOfferStore) Load(ctx context.Context, userID, clientPhone string) (*SlotOffer, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_offer")
	defer span.End()

	data, err := s.redis.Get(ctx, offerKey(userID, clientPhone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load offer: %w", err)
	}
	var offer SlotOffer
	if err := json.Unmarshal(data, &offer); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode offer: %w", err)
	}
	return &offer, nil
}

func (s *RedisOfferStore) Clear(ctx context.Context, userID, clientPhone string) error {
	if err := s.redis.Del(ctx, offerKey(userID, clientPhone)).Err(); err != nil {
		return fmt.Errorf("conversation: failed to delete offer: %w", err)
	}
	return nil
}

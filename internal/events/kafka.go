package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaHandler publishes outbox entries to a Kafka topic keyed by user id, so
// events of one professional stay ordered within a partition.
type KafkaHandler struct {
	writer messageWriter
	topic  string
}

// NewKafkaHandler creates a handler writing to topic on brokers.
func NewKafkaHandler(brokers []string, topic string) *KafkaHandler {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaHandler{writer: writer, topic: topic}
}

func newKafkaHandlerWithWriter(writer messageWriter, topic string) *KafkaHandler {
	return &KafkaHandler{writer: writer, topic: topic}
}

func (h *KafkaHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	msg := kafka.Message{
		Key:   []byte(entry.UserID),
		Value: entry.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(entry.ID.String())},
			{Key: "event_type", Value: []byte(entry.Type)},
		},
	}
	carrier := &headerCarrier{headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.headers

	if err := h.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: kafka publish %s to %s: %w", entry.Type, h.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (h *KafkaHandler) Close() error {
	return h.writer.Close()
}

// HeaderValue returns the first header named key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types published after a ledger mutation commits.
const (
	TypeStockRestocked  = "StockRestocked"
	TypeStockAllocated  = "StockAllocated"
	TypeStockReturned   = "StockReturned"
	TypeOrderCreated    = "OrderCreated"
	TypeStoreReconciled = "StoreReconciled"
)

// Event is the envelope written to the topic. Payload is the JSON encoding of
// the domain result that triggered it.
type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	StoreID   int64           `json:"store_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an event with a fresh id and the current time.
func New(eventType string, storeID int64, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		StoreID:   storeID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Publisher delivers ledger events. Publishing happens after commit, so a
// failure never rolls back the change it describes.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by store id, so events
// for one store stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// publishBatchTimeout caps how long the writer holds a partial batch.
// Publish blocks until its single message is flushed.
const publishBatchTimeout = 10 * time.Millisecond

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: newKafkaWriter(brokers, topic),
		logger: logger,
	}
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              1,
		BatchTimeout:           publishBatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.EventID, err)
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("store-%d", ev.StoreID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.EventType, err)
	}
	p.logger.Debug("event published",
		zap.String("event_id", ev.EventID),
		zap.String("event_type", ev.EventType),
		zap.Int64("store_id", ev.StoreID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

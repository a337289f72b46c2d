// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const TypeAnalysisCompleted = "analysis.completed"

// Event is the envelope written to the topic. Key is used as the message key
// so every event of a patient lands on the same partition.
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	TenantID   string      `json:"tenant_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer Writer
	topic  string
	logger zerolog.Logger
}

// NewProducer creates a producer writing to topic on the given brokers.
func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(w, topic, logger)
}

func NewProducerWithWriter(w Writer, topic string, logger zerolog.Logger) *Producer {
	return &Producer{writer: w, topic: topic, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type, p.topic, err)
	}
	p.logger.Debug().Str("type", e.Type).Str("key", e.Key).Str("topic", p.topic).Msg("event published")
	return nil
}

func (p *Producer) Close() error { return p.writer.Close() }

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

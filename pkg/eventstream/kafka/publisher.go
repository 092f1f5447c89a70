// Package kafka publishes ingest events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/vellum/pkg/eventstream"
)

// DefaultTopic is the topic ingest events are written to.
const DefaultTopic = "vellum.ingest"

// Config holds configuration for the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per event, keyed by collection so events for
// a collection stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a publisher backed by a kafka-go Writer.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka event publisher initialized",
		"brokers", cfg.Brokers,
		"topic", topic,
	)

	return newPublisher(w, logger), nil
}

func newPublisher(w messageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger}
}

// PublishIngest encodes the event as JSON and writes it.
func (p *Publisher) PublishIngest(ctx context.Context, event *eventstream.IngestCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilIngestEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding ingest event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Collection),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing ingest event: %w", err)
	}

	p.logger.Debug("published ingest event",
		"event_id", event.EventID,
		"collection", event.Collection,
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)

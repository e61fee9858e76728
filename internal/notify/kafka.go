package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	err := p.w.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(msg.ID.String())}},
	})
	if err != nil {
		return fmt.Errorf("kafka: write %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

type KafkaConsumer struct {
	r          *kafka.Reader
	retryDelay time.Duration
}

func NewKafkaConsumer(brokers []string, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		retryDelay: time.Second,
	}
}

// Run commits a message only after h handled it, so a crash mid-handling
// leads to redelivery. Handler failures are retried in place until ctx ends.
func (c *KafkaConsumer) Run(ctx context.Context, h Handler) error {
	l := logging.FromContext(ctx).With("component", "kafka_consumer", "topic", c.r.Config().Topic)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: fetch: %w", err)
		}

		for attempt := 1; ; attempt++ {
			err := h.Handle(ctx, m.Value)
			if err == nil {
				break
			}
			if errors.Is(err, ErrMalformed) {
				l.ErrorContext(ctx, "message_dropped", "offset", m.Offset, "error", err)
				break
			}
			l.WarnContext(ctx, "message_handle_failed", "offset", m.Offset, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: commit: %w", err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.r.Close()
}

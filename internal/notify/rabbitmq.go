package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

// RabbitMQ publishes to a durable topic exchange with the message topic as
// routing key and waits for broker confirms.
type RabbitMQ struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

func DialRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	if exchange == "" {
		return nil, errors.New("rabbitmq: exchange name cannot be empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	return &RabbitMQ{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, r.exchange, msg.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         msg.Value,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", msg.Topic, err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: confirm %s: %w", msg.Topic, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked %s", msg.ID)
	}
	return nil
}

// Consume binds a durable queue to routingKey and hands deliveries to h,
// acking on success and requeueing on failure. Malformed messages are dropped.
func (r *RabbitMQ) Consume(ctx context.Context, queue, routingKey string, h Handler) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, r.exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind %s to %s: %w", q.Name, r.exchange, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", q.Name, err)
	}

	l := logging.FromContext(ctx).With("component", "rabbitmq_consumer", "queue", q.Name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("rabbitmq: delivery channel closed")
			}
			err := h.Handle(ctx, d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrMalformed):
				l.ErrorContext(ctx, "message_dropped", "message_id", d.MessageId, "error", err)
				_ = d.Ack(false)
			default:
				l.WarnContext(ctx, "message_handle_failed", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, true)
			}
		}
	}
}

func (r *RabbitMQ) Close() error {
	if err := r.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return r.conn.Close()
}

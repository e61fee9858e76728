package notify

import (
	"fmt"

	"github.com/Skotchmaster/storefront/pkg/config"
)

const (
	TransportKafka    = "kafka"
	TransportRabbitMQ = "rabbitmq"
)

// NewPublisher builds the broker publisher selected by NOTIFY_TRANSPORT.
func NewPublisher(cfg config.Config) (Publisher, error) {
	switch cfg.NotifyTransport {
	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("notify: KAFKA_BROKERS is empty")
		}
		return NewKafkaPublisher(cfg.KafkaBrokers), nil
	case TransportRabbitMQ:
		if cfg.RabbitMQURL == "" {
			return nil, fmt.Errorf("notify: RABBITMQ_URL is empty")
		}
		return DialRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	default:
		return nil, fmt.Errorf("notify: unknown transport %q", cfg.NotifyTransport)
	}
}

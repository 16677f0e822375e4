package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"student-records/internal/config"
)

// Producer publishes JSON-encoded events. key identifies the entity the
// event is about (Kafka partition key, NATS header).
type Producer interface {
	SendMessage(ctx context.Context, key string, value interface{}) error
	Close() error
}

// NewProducer picks the broker named by cfg.Driver.
func NewProducer(cfg config.MessagingConfig, logger *slog.Logger) (Producer, error) {
	switch cfg.Driver {
	case "nats":
		return NewNATSProducer(cfg.NATS.URL, cfg.NATS.Subject, logger)
	case "kafka":
		return NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	case "", "none":
		logger.Info("event publishing disabled")
		return NopProducer{}, nil
	default:
		return nil, fmt.Errorf("unknown messaging driver %q", cfg.Driver)
	}
}

// NopProducer drops every event.
type NopProducer struct{}

func (NopProducer) SendMessage(context.Context, string, interface{}) error { return nil }

func (NopProducer) Close() error { return nil }

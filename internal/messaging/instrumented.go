package messaging

import (
	"context"
	"time"

	"student-records/internal/metrics"
)

// instrumented records publish latency and outcome for the wrapped producer.
type instrumented struct {
	Producer
	system  string
	metrics *metrics.MessagingMetrics
}

// Instrument wraps p so every SendMessage is measured under system.
func Instrument(p Producer, system string, m *metrics.MessagingMetrics) Producer {
	if _, ok := p.(NopProducer); ok {
		return p
	}
	return &instrumented{Producer: p, system: system, metrics: m}
}

func (p *instrumented) SendMessage(ctx context.Context, key string, value interface{}) error {
	start := time.Now()
	err := p.Producer.SendMessage(ctx, key, value)
	p.metrics.RecordPublish(ctx, p.system, time.Since(start), err)
	return err
}

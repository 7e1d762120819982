package events

import (
	"context"
	"log/slog"

	"github.com/timepay/event-listener/internal/ports"
)

// LoggingProducer stands in for Kafka when no brokers are configured, so
// local runs still exercise the full relay path.
type LoggingProducer struct {
	logger *slog.Logger
}

func NewLoggingProducer(logger *slog.Logger) *LoggingProducer {
	return &LoggingProducer{logger: logger}
}

func (p *LoggingProducer) Start() error { return nil }

func (p *LoggingProducer) Stop(_ context.Context) error { return nil }

func (p *LoggingProducer) Send(ctx context.Context, input ports.SendInput) (ports.SendResult, error) {
	p.logger.InfoContext(ctx, "event published",
		"module", "events.logging_producer",
		"layer", "adapter",
		"operation", "send",
		"outcome", "success",
		"event_type", input.EventType,
		"priority", string(input.Priority),
		"correlation_id", input.CorrelationID,
	)
	return ports.SendResult{Success: true, Topic: input.Topic, Attempts: 1}, nil
}

func (p *LoggingProducer) Stats() ports.ProducerStats {
	return ports.ProducerStats{Running: true}
}

func (p *LoggingProducer) Health() ports.ProducerHealth {
	return ports.ProducerHealth{Status: "up", Message: "logging producer"}
}

package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/timepay/event-listener/internal/ports"
)

// Envelope is the wire format every published message uses. Consumers must
// tolerate redelivery and dedupe on correlation_id, which is stable across
// republishes of the same outbox row (message_id is fresh per attempt).
type Envelope struct {
	EventType         string `json:"event_type"`
	Data              any    `json:"data"`
	Source            string `json:"source"`
	Priority          string `json:"priority"`
	MessageID         string `json:"message_id"`
	Timestamp         string `json:"timestamp"`
	CorrelationID     string `json:"correlation_id,omitempty"`
	Topic             string `json:"topic"`
	ProducerTimestamp string `json:"producer_timestamp"`
}

func newEnvelope(input ports.SendInput, topic, source string, now time.Time) Envelope {
	priority := input.Priority
	if priority == "" {
		priority = ports.PriorityNormal
	}
	if input.Source != "" {
		source = input.Source
	}
	return Envelope{
		EventType:         input.EventType,
		Data:              input.Data,
		Source:            source,
		Priority:          string(priority),
		MessageID:         uuid.NewString(),
		Timestamp:         now.Format(time.RFC3339Nano),
		CorrelationID:     input.CorrelationID,
		Topic:             topic,
		ProducerTimestamp: now.Format(time.RFC3339Nano),
	}
}

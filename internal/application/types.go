package application

import (
	"time"

	"github.com/timepay/event-listener/internal/ports"
)

type Config struct {
	ServiceName            string
	HeartbeatOutboxEnabled bool
	PresenceTTL            time.Duration
}

// Dispatcher triggers the fast-path publish for one outbox row without
// blocking the caller.
type Dispatcher interface {
	Dispatch(id int64)
}

type IngestResult struct {
	Kind        string `json:"kind"`
	AggregateID int64  `json:"aggregate_id"`
	OutboxID    *int64 `json:"outbox_id,omitempty"`
}

type DevicePresenceResponse struct {
	DeviceID      string    `json:"device_id"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	LastEventType string    `json:"last_event_type"`
}

type OutboxStatsResponse struct {
	UnprocessedEvents int64                `json:"unprocessed_events"`
	Producer          ports.ProducerStats  `json:"producer"`
	ProducerHealth    ports.ProducerHealth `json:"producer_health"`
}

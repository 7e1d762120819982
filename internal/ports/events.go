package ports

import "context"

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// SendInput describes one logical message. Topic and Key are optional
// overrides; the producer falls back to its configured defaults.
type SendInput struct {
	EventType     string
	Data          any
	Source        string
	Priority      Priority
	CorrelationID string
	Topic         string
	Key           string
}

// SendResult reports the outcome of a send, including how many attempts the
// producer's internal retry policy consumed.
type SendResult struct {
	Success   bool
	MessageID string
	Topic     string
	Attempts  int
	Error     string
}

type EventProducer interface {
	Send(ctx context.Context, input SendInput) (SendResult, error)
}

// ProducerStats are running totals since Start.
type ProducerStats struct {
	MessagesSent   int64
	MessagesFailed int64
	BytesSent      int64
	Running        bool
	UptimeSeconds  float64
}

type ProducerHealth struct {
	Status  string
	Message string
}

// StatsReporter is implemented by producers that expose operational counters.
type StatsReporter interface {
	Stats() ProducerStats
	Health() ProducerHealth
}

package ports

import (
	"context"
	"time"

	"github.com/timepay/event-listener/internal/domain"
)

type CreateAccessEventParams struct {
	Event     *domain.AccessEvent
	CreatedAt time.Time
}

type CreateHeartbeatParams struct {
	Heartbeat *domain.Heartbeat
	CreatedAt time.Time
}

type AppendOutboxParams struct {
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

type EventRepository interface {
	CreateAccessEvent(ctx context.Context, params CreateAccessEventParams) error
	CreateHeartbeat(ctx context.Context, params CreateHeartbeatParams) error
}

// OutboxRepository is the persistence gateway for the relay. MarkProcessed is
// conditional on the row still being unprocessed and reports whether this
// caller won the transition.
type OutboxRepository interface {
	Append(ctx context.Context, params AppendOutboxParams) (int64, error)
	FetchUnprocessed(ctx context.Context, limit int, minAge time.Duration) ([]domain.OutboxEvent, error)
	FetchPending(ctx context.Context, id int64) (domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id int64, at time.Time) (bool, error)
	CountUnprocessed(ctx context.Context) (int64, error)
}

// TxRepositories are the repositories scoped to one database transaction.
type TxRepositories struct {
	Events EventRepository
	Outbox OutboxRepository
}

// TxRunner executes fn inside a single transaction: everything fn writes
// commits atomically or not at all.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

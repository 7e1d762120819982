package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/timepay/event-listener/internal/domain"
	"github.com/timepay/event-listener/internal/ports"
)

// RelayDispatcher is the fast path: it publishes a single outbox row right
// after the enclosing transaction commits, detached from the request. It
// never retries; a failed attempt leaves the row unprocessed for the sweep.
type RelayDispatcher struct {
	logger   *slog.Logger
	outbox   ports.OutboxRepository
	producer ports.EventProducer
	timeout  time.Duration

	slots chan struct{}
	wg    sync.WaitGroup
	now   func() time.Time
}

func NewRelayDispatcher(logger *slog.Logger, outbox ports.OutboxRepository, producer ports.EventProducer, maxInFlight int, timeout time.Duration) *RelayDispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 32
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &RelayDispatcher{
		logger:   logger,
		outbox:   outbox,
		producer: producer,
		timeout:  timeout,
		slots:    make(chan struct{}, maxInFlight),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch schedules one publish attempt and returns immediately. When all
// in-flight slots are taken the row is simply left for the sweep; the caller
// never blocks on broker latency.
func (d *RelayDispatcher) Dispatch(id int64) {
	select {
	case d.slots <- struct{}{}:
	default:
		d.logger.Warn("dispatch slots exhausted, leaving event for sweep",
			"module", "events.relay_dispatcher",
			"layer", "adapter",
			"operation", "dispatch",
			"outcome", "deferred",
			"outbox_id", id,
		)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("dispatch panic recovered",
					"module", "events.relay_dispatcher",
					"layer", "adapter",
					"operation", "dispatch",
					"outcome", "failure",
					"outbox_id", id,
					"panic", rec,
				)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.dispatchOne(ctx, id)
	}()
}

func (d *RelayDispatcher) dispatchOne(ctx context.Context, id int64) {
	record, err := d.outbox.FetchPending(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Missing or already handled by the sweep.
			return
		}
		d.logger.ErrorContext(ctx, "failed to load outbox event",
			"module", "events.relay_dispatcher",
			"layer", "adapter",
			"operation", "fetch_pending",
			"outcome", "failure",
			"outbox_id", id,
			"error", err,
		)
		return
	}

	result, err := d.producer.Send(ctx, ports.SendInput{
		EventType:     record.EventType,
		Data:          json.RawMessage(record.Payload),
		Priority:      ports.PriorityHigh,
		CorrelationID: strconv.FormatInt(record.ID, 10),
	})
	if err != nil || !result.Success {
		d.logger.WarnContext(ctx, "fast-path publish failed, sweep will retry",
			"module", "events.relay_dispatcher",
			"layer", "adapter",
			"operation", "send",
			"outcome", "failure",
			"outbox_id", id,
			"attempts", result.Attempts,
			"error", err,
		)
		return
	}

	won, err := d.outbox.MarkProcessed(ctx, id, d.now())
	if err != nil {
		// The send happened; the row will be republished by the sweep and
		// consumers dedupe on correlation_id. Accepted duplicate.
		d.logger.WarnContext(ctx, "published but failed to mark processed",
			"module", "events.relay_dispatcher",
			"layer", "adapter",
			"operation", "mark_processed",
			"outcome", "failure",
			"outbox_id", id,
			"error", err,
		)
		return
	}
	if !won {
		return
	}
	d.logger.DebugContext(ctx, "outbox event published",
		"module", "events.relay_dispatcher",
		"layer", "adapter",
		"operation", "dispatch",
		"outcome", "success",
		"outbox_id", id,
		"message_id", result.MessageID,
	)
}

// Close waits for in-flight dispatches to finish, bounded by ctx.
func (d *RelayDispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/timepay/event-listener/internal/ports"
)

const errorBackoffFactor = 5

// CycleStats reports one sweep cycle.
type CycleStats struct {
	Attempted int
	Succeeded int
	Failed    int
}

// SweepProcessor is the fallback path: on a fixed cadence it republishes
// outbox rows that stayed unprocessed longer than the grace window. One
// row's failure never aborts the rest of the batch, and the loop itself
// survives store outages by backing off and trying again.
type SweepProcessor struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	producer  ports.EventProducer
	interval  time.Duration
	batchSize int
	minAge    time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewSweepProcessor(logger *slog.Logger, outbox ports.OutboxRepository, producer ports.EventProducer, interval time.Duration, batchSize int, minAge time.Duration) *SweepProcessor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if minAge < 0 {
		minAge = 30 * time.Second
	}
	return &SweepProcessor{
		logger:    logger,
		outbox:    outbox,
		producer:  producer,
		interval:  interval,
		batchSize: batchSize,
		minAge:    minAge,
		stop:      make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run loops until ctx is cancelled or Stop is called. Stop lets the current
// cycle finish; ctx cancellation also interrupts in-flight sends.
func (p *SweepProcessor) Run(ctx context.Context) error {
	for {
		stats, err := p.ProcessBatch(ctx)
		wait := p.interval
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return ctx.Err()
		case err != nil:
			p.logger.ErrorContext(ctx, "sweep cycle failed",
				"module", "events.sweep_processor",
				"layer", "adapter",
				"operation", "process_batch",
				"outcome", "failure",
				"error", err,
			)
			wait = p.interval * errorBackoffFactor
		case stats.Attempted > 0:
			p.logger.InfoContext(ctx, "sweep cycle complete",
				"module", "events.sweep_processor",
				"layer", "adapter",
				"operation", "process_batch",
				"outcome", "success",
				"attempted", stats.Attempted,
				"succeeded", stats.Succeeded,
				"failed", stats.Failed,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return nil
		case <-time.After(wait):
		}
	}
}

// Stop signals a graceful exit. Safe to call more than once.
func (p *SweepProcessor) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// ProcessBatch runs exactly one sweep cycle and is safe to call from an
// external scheduler; concurrent calls only cost duplicate publish attempts,
// never inconsistent state, because MarkProcessed stays conditional.
func (p *SweepProcessor) ProcessBatch(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	records, err := p.outbox.FetchUnprocessed(ctx, p.batchSize, p.minAge)
	if err != nil {
		return stats, err
	}
	for _, record := range records {
		stats.Attempted++
		result, sendErr := p.producer.Send(ctx, ports.SendInput{
			EventType:     record.EventType,
			Data:          json.RawMessage(record.Payload),
			Priority:      ports.PriorityNormal,
			CorrelationID: strconv.FormatInt(record.ID, 10),
		})
		if sendErr != nil || !result.Success {
			stats.Failed++
			p.logger.WarnContext(ctx, "failed to republish outbox event",
				"module", "events.sweep_processor",
				"layer", "adapter",
				"operation", "send",
				"outcome", "failure",
				"outbox_id", record.ID,
				"attempts", result.Attempts,
				"error", sendErr,
			)
			continue
		}
		if _, markErr := p.outbox.MarkProcessed(ctx, record.ID, p.now()); markErr != nil {
			// Row stays visible to the next cycle; the resulting duplicate
			// publish is within the at-least-once contract.
			stats.Failed++
			p.logger.WarnContext(ctx, "published but failed to mark processed",
				"module", "events.sweep_processor",
				"layer", "adapter",
				"operation", "mark_processed",
				"outcome", "failure",
				"outbox_id", record.ID,
				"error", markErr,
			)
			continue
		}
		stats.Succeeded++
	}
	return stats, nil
}

package events

import (
	"context"
	"testing"
	"time"

	"github.com/timepay/event-listener/internal/ports"
)

func newTestDispatcher(outbox *memOutbox, producer ports.EventProducer) *RelayDispatcher {
	return NewRelayDispatcher(testLogger(), outbox, producer, 4, time.Second)
}

func waitForDispatches(t *testing.T, d *RelayDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("dispatches did not drain: %v", err)
	}
}

func TestDispatchPublishesAndMarksProcessed(t *testing.T) {
	t.Parallel()

	outbox := newMemOutbox(nil)
	outbox.add(42, "access_control.event_created", []byte(`{"person":"x"}`), time.Now().UTC())
	producer := newRecordingProducer()
	d := newTestDispatcher(outbox, producer)

	d.Dispatch(42)
	waitForDispatches(t, d)

	row := outbox.get(42)
	if !row.Processed {
		t.Fatalf("expected row marked processed")
	}
	if row.ProcessedAt == nil {
		t.Fatalf("expected processed_at set")
	}
	sends := producer.sends()
	if len(sends) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sends))
	}
	if sends[0].Priority != ports.PriorityHigh {
		t.Fatalf("fast path must publish with high priority, got %q", sends[0].Priority)
	}
	if sends[0].CorrelationID != "42" {
		t.Fatalf("correlation id must be the outbox row id, got %q", sends[0].CorrelationID)
	}
}

func TestDispatchAlreadyProcessedIsNoOp(t *testing.T) {
	t.Parallel()

	outbox := newMemOutbox(nil)
	outbox.add(7, "access_control.event_created", []byte(`{}`), time.Now().UTC())
	if _, err := outbox.MarkProcessed(context.Background(), 7, time.Now().UTC()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	producer := newRecordingProducer()
	d := newTestDispatcher(outbox, producer)

	d.Dispatch(7)
	d.Dispatch(9999) // missing row
	waitForDispatches(t, d)

	if len(producer.sends()) != 0 {
		t.Fatalf("expected no sends for processed or missing rows")
	}
}

func TestDispatchFailureLeavesRowForSweep(t *testing.T) {
	t.Parallel()

	outbox := newMemOutbox(nil)
	outbox.add(5, "access_control.event_created", []byte(`{}`), time.Now().UTC())
	producer := newRecordingProducer()
	producer.failFor["5"] = true
	d := newTestDispatcher(outbox, producer)

	d.Dispatch(5)
	waitForDispatches(t, d)

	if outbox.get(5).Processed {
		t.Fatalf("failed publish must leave the row unprocessed")
	}
	// The fast path never retries; redelivery belongs to the sweep.
	if got := producer.sendCountFor("5"); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}

func TestDispatchMarkFailureIsAcceptedDuplicate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	outbox := newMemOutbox(func() time.Time { return now })
	outbox.add(11, "access_control.event_created", []byte(`{}`), now.Add(-time.Minute))
	outbox.markErr = context.DeadlineExceeded
	producer := newRecordingProducer()
	d := newTestDispatcher(outbox, producer)

	d.Dispatch(11)
	waitForDispatches(t, d)

	// Send happened but the row stayed visible: the sweep republishes it.
	if got := producer.sendCountFor("11"); got != 1 {
		t.Fatalf("expected one fast-path send, got %d", got)
	}
	outbox.markErr = nil
	sweep := NewSweepProcessor(testLogger(), outbox, producer, time.Second, 10, 0)
	stats, err := sweep.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("expected sweep to republish the row, stats %+v", stats)
	}
	if got := producer.sendCountFor("11"); got != 2 {
		t.Fatalf("expected the accepted duplicate publish, got %d sends", got)
	}
}

func TestDispatchSlotsExhaustedDefersToSweep(t *testing.T) {
	t.Parallel()

	outbox := newMemOutbox(nil)
	blocked := &blockingProducer{release: make(chan struct{})}
	d := NewRelayDispatcher(testLogger(), outbox, blocked, 1, time.Second)

	outbox.add(1, "access_control.event_created", []byte(`{}`), time.Now().UTC())
	outbox.add(2, "access_control.event_created", []byte(`{}`), time.Now().UTC())

	d.Dispatch(1)
	// Slot is held by the blocked send; this dispatch must return
	// immediately and leave the row for the sweep.
	done := make(chan struct{})
	go func() {
		d.Dispatch(2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Dispatch blocked the caller")
	}

	blocked.releaseAll()
	waitForDispatches(t, d)
	if outbox.get(2).Processed {
		t.Fatalf("deferred row must stay unprocessed for the sweep")
	}
}

type blockingProducer struct {
	release chan struct{}
}

func (p *blockingProducer) Send(ctx context.Context, _ ports.SendInput) (ports.SendResult, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return ports.SendResult{Success: true, Attempts: 1}, nil
}

func (p *blockingProducer) releaseAll() { close(p.release) }

package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/timepay/event-listener/internal/domain"
	"github.com/timepay/event-listener/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memOutbox is an in-memory stand-in for the outbox table with the same
// conditional-transition semantics as the real repository.
type memOutbox struct {
	mu       sync.Mutex
	rows     map[int64]*domain.OutboxEvent
	fetchErr error
	markErr  error
	now      func() time.Time
}

func newMemOutbox(now func() time.Time) *memOutbox {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &memOutbox{rows: map[int64]*domain.OutboxEvent{}, now: now}
}

func (o *memOutbox) add(id int64, eventType string, payload []byte, createdAt time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rows[id] = &domain.OutboxEvent{
		ID:            id,
		AggregateID:   "agg",
		AggregateType: domain.AggregateTypeEvent,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}

func (o *memOutbox) get(id int64) domain.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.rows[id]
}

func (o *memOutbox) Append(_ context.Context, params ports.AppendOutboxParams) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := int64(len(o.rows) + 1)
	o.rows[id] = &domain.OutboxEvent{
		ID:            id,
		AggregateID:   params.AggregateID,
		AggregateType: params.AggregateType,
		EventType:     params.EventType,
		Payload:       params.Payload,
		CreatedAt:     params.CreatedAt,
	}
	return id, nil
}

func (o *memOutbox) FetchUnprocessed(_ context.Context, limit int, minAge time.Duration) ([]domain.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fetchErr != nil {
		return nil, o.fetchErr
	}
	cutoff := o.now().Add(-minAge)
	out := make([]domain.OutboxEvent, 0)
	for _, row := range o.rows {
		if !row.Processed && !row.CreatedAt.After(cutoff) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *memOutbox) FetchPending(_ context.Context, id int64) (domain.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	row, ok := o.rows[id]
	if !ok || row.Processed {
		return domain.OutboxEvent{}, domain.ErrNotFound
	}
	return *row, nil
}

func (o *memOutbox) MarkProcessed(_ context.Context, id int64, at time.Time) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.markErr != nil {
		return false, o.markErr
	}
	row, ok := o.rows[id]
	if !ok || row.Processed {
		return false, nil
	}
	row.Processed = true
	processedAt := at
	row.ProcessedAt = &processedAt
	return true, nil
}

func (o *memOutbox) CountUnprocessed(_ context.Context) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var count int64
	for _, row := range o.rows {
		if !row.Processed {
			count++
		}
	}
	return count, nil
}

// recordingProducer records every send and fails the correlation ids it is
// told to fail.
type recordingProducer struct {
	mu      sync.Mutex
	calls   []ports.SendInput
	failFor map[string]bool
}

func newRecordingProducer() *recordingProducer {
	return &recordingProducer{failFor: map[string]bool{}}
}

func (p *recordingProducer) Send(_ context.Context, input ports.SendInput) (ports.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, input)
	if p.failFor[input.CorrelationID] {
		return ports.SendResult{Success: false, Attempts: 1, Error: "broker unavailable"}, errors.New("broker unavailable")
	}
	return ports.SendResult{Success: true, MessageID: "msg-" + input.CorrelationID, Attempts: 1}, nil
}

func (p *recordingProducer) sends() []ports.SendInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ports.SendInput, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *recordingProducer) sendCountFor(correlationID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, call := range p.calls {
		if call.CorrelationID == correlationID {
			count++
		}
	}
	return count
}

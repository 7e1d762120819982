package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timepay/event-listener/internal/domain"
	"github.com/timepay/event-listener/internal/ports"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func (r *outboxRepository) Append(ctx context.Context, params ports.AppendOutboxParams) (int64, error) {
	rec := outboxEventModel{
		AggregateID:   params.AggregateID,
		AggregateType: params.AggregateType,
		EventType:     params.EventType,
		Payload:       string(params.Payload),
		CreatedAt:     params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("append outbox event: %w", err)
	}
	return rec.ID, nil
}

func (r *outboxRepository) FetchUnprocessed(ctx context.Context, limit int, minAge time.Duration) ([]domain.OutboxEvent, error) {
	cutoff := r.now().UTC().Add(-minAge)
	var rows []outboxEventModel
	err := r.db.WithContext(ctx).
		Where("processed = ? AND created_at <= ?", false, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed outbox events: %w", err)
	}
	out := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, outboxEventToDomain(row))
	}
	return out, nil
}

func (r *outboxRepository) FetchPending(ctx context.Context, id int64) (domain.OutboxEvent, error) {
	var row outboxEventModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND processed = ?", id, false).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OutboxEvent{}, domain.ErrNotFound
		}
		return domain.OutboxEvent{}, fmt.Errorf("fetch outbox event %d: %w", id, err)
	}
	return outboxEventToDomain(row), nil
}

// MarkProcessed flips the row to processed only if it has not already been
// flipped. The guard keeps the transition monotonic when the fast path and
// the sweep race on the same row.
func (r *outboxRepository) MarkProcessed(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&outboxEventModel{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark outbox event %d processed: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *outboxRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&outboxEventModel{}).
		Where("processed = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unprocessed outbox events: %w", err)
	}
	return count, nil
}

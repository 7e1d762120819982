package postgres

import (
	"context"
	"fmt"

	"github.com/timepay/event-listener/internal/ports"
	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

func (r *eventRepository) CreateAccessEvent(ctx context.Context, params ports.CreateAccessEventParams) error {
	params.Event.CreatedAt = params.CreatedAt
	rec := eventModelFromDomain(params.Event)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	params.Event.ID = rec.ID
	return nil
}

func (r *eventRepository) CreateHeartbeat(ctx context.Context, params ports.CreateHeartbeatParams) error {
	hb := params.Heartbeat
	rec := heartbeatModel{
		DateTime:         hb.DateTime,
		ActivePostCount:  hb.ActivePostCount,
		EventType:        hb.EventType,
		EventState:       hb.EventState,
		EventDescription: hb.EventDescription,
		CreatedAt:        params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	hb.ID = rec.ID
	hb.CreatedAt = params.CreatedAt
	return nil
}

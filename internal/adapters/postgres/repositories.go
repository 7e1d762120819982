package postgres

import (
	"context"
	"time"

	"github.com/timepay/event-listener/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Events ports.EventRepository
	Outbox ports.OutboxRepository

	db  *gorm.DB
	now func() time.Time
}

func NewRepositories(db *gorm.DB) Repositories {
	return newRepositories(db, func() time.Time { return time.Now().UTC() })
}

func newRepositories(db *gorm.DB, now func() time.Time) Repositories {
	return Repositories{
		Events: &eventRepository{db: db},
		Outbox: &outboxRepository{db: db, now: now},
		db:     db,
		now:    now,
	}
}

// InTx runs fn with repositories bound to a single transaction. A returned
// error rolls back everything fn wrote, including the outbox append.
func (r Repositories) InTx(ctx context.Context, fn func(repos ports.TxRepositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := newRepositories(tx, r.now)
		return fn(ports.TxRepositories{
			Events: scoped.Events,
			Outbox: scoped.Outbox,
		})
	})
}

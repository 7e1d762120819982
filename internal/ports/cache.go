package ports

import (
	"context"
	"time"
)

type DevicePresence struct {
	DeviceID      string
	LastSeenAt    time.Time
	LastEventType string
}

// PresenceStore tracks when each device was last heard from.
type PresenceStore interface {
	Touch(ctx context.Context, deviceID, eventType string, at time.Time) error
	Get(ctx context.Context, deviceID string) (DevicePresence, error)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timepay/event-listener/internal/domain"
	"github.com/timepay/event-listener/internal/ports"
)

type presenceRecord struct {
	LastSeenAt    time.Time `json:"last_seen_at"`
	LastEventType string    `json:"last_event_type"`
}

// RedisPresenceStore keeps per-device last-seen state with a TTL so devices
// that go silent eventually read as absent.
type RedisPresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPresenceStore(client *redis.Client, ttl time.Duration) *RedisPresenceStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPresenceStore{client: client, ttl: ttl}
}

func presenceKey(deviceID string) string {
	return "device_presence:" + deviceID
}

func (s *RedisPresenceStore) Touch(ctx context.Context, deviceID, eventType string, at time.Time) error {
	raw, err := json.Marshal(presenceRecord{LastSeenAt: at, LastEventType: eventType})
	if err != nil {
		return fmt.Errorf("serialize presence record: %w", err)
	}
	if err := s.client.Set(ctx, presenceKey(deviceID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store presence record: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) Get(ctx context.Context, deviceID string) (ports.DevicePresence, error) {
	raw, err := s.client.Get(ctx, presenceKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.DevicePresence{}, domain.ErrNotFound
		}
		return ports.DevicePresence{}, fmt.Errorf("load presence record: %w", err)
	}
	var record presenceRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return ports.DevicePresence{}, fmt.Errorf("decode presence record: %w", err)
	}
	return ports.DevicePresence{
		DeviceID:      deviceID,
		LastSeenAt:    record.LastSeenAt,
		LastEventType: record.LastEventType,
	}, nil
}

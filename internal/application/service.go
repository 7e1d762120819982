package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/timepay/event-listener/internal/domain"
	"github.com/timepay/event-listener/internal/ports"
)

type Dependencies struct {
	Config     Config
	Logger     *slog.Logger
	Tx         ports.TxRunner
	Outbox     ports.OutboxRepository
	Presence   ports.PresenceStore
	Dispatcher Dispatcher
	Producer   ports.StatsReporter
	Now        func() time.Time
}

type Service struct {
	cfg        Config
	logger     *slog.Logger
	tx         ports.TxRunner
	outbox     ports.OutboxRepository
	presence   ports.PresenceStore
	dispatcher Dispatcher
	producer   ports.StatsReporter
	now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:        deps.Config,
		logger:     deps.Logger,
		tx:         deps.Tx,
		outbox:     deps.Outbox,
		presence:   deps.Presence,
		dispatcher: deps.Dispatcher,
		producer:   deps.Producer,
		now:        now,
	}
}

// IngestNotification validates and persists one device frame. The domain row
// and its outbox row commit in a single transaction; the broker publish
// happens after commit, detached from this call. Broker trouble is therefore
// never visible to the device.
func (s *Service) IngestNotification(ctx context.Context, raw []byte) (IngestResult, error) {
	notification, err := ParseNotification(raw)
	if err != nil {
		return IngestResult{}, err
	}
	switch n := notification.(type) {
	case HeartbeatNotification:
		return s.ingestHeartbeat(ctx, n)
	case AccessEventNotification:
		return s.ingestAccessEvent(ctx, n)
	default:
		return IngestResult{}, fmt.Errorf("%w: unsupported notification variant", domain.ErrInvalidInput)
	}
}

func (s *Service) ingestAccessEvent(ctx context.Context, n AccessEventNotification) (IngestResult, error) {
	event := n.toDomain()
	if err := domain.ValidateAccessEvent(event); err != nil {
		return IngestResult{}, err
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return IngestResult{}, fmt.Errorf("serialize event payload: %w", err)
	}

	now := s.now()
	var outboxID *int64
	err = s.tx.InTx(ctx, func(repos ports.TxRepositories) error {
		if err := repos.Events.CreateAccessEvent(ctx, ports.CreateAccessEventParams{Event: &event, CreatedAt: now}); err != nil {
			return err
		}
		// Only attendance events are relayed to the broker; informational
		// events are persisted for auditing and nothing more.
		if !event.IsAttendanceEvent() {
			return nil
		}
		id, err := repos.Outbox.Append(ctx, ports.AppendOutboxParams{
			AggregateID:   strconv.FormatInt(event.ID, 10),
			AggregateType: domain.AggregateTypeEvent,
			EventType:     domain.EventTypeEventCreated,
			Payload:       payload,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		outboxID = &id
		return nil
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if outboxID != nil {
		s.dispatcher.Dispatch(*outboxID)
	}
	s.touchPresence(ctx, event.DeviceID, event.EventType, now)

	return IngestResult{Kind: "event", AggregateID: event.ID, OutboxID: outboxID}, nil
}

func (s *Service) ingestHeartbeat(ctx context.Context, n HeartbeatNotification) (IngestResult, error) {
	heartbeat := n.toDomain()
	if err := domain.ValidateHeartbeat(heartbeat); err != nil {
		return IngestResult{}, err
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return IngestResult{}, fmt.Errorf("serialize heartbeat payload: %w", err)
	}

	now := s.now()
	var outboxID *int64
	err = s.tx.InTx(ctx, func(repos ports.TxRepositories) error {
		if err := repos.Events.CreateHeartbeat(ctx, ports.CreateHeartbeatParams{Heartbeat: &heartbeat, CreatedAt: now}); err != nil {
			return err
		}
		if !s.cfg.HeartbeatOutboxEnabled {
			return nil
		}
		id, err := repos.Outbox.Append(ctx, ports.AppendOutboxParams{
			AggregateID:   strconv.FormatInt(heartbeat.ID, 10),
			AggregateType: domain.AggregateTypeHeartbeat,
			EventType:     domain.EventTypeHeartbeatCreated,
			Payload:       payload,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		outboxID = &id
		return nil
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if outboxID != nil {
		s.dispatcher.Dispatch(*outboxID)
	}

	return IngestResult{Kind: "heartbeat", AggregateID: heartbeat.ID, OutboxID: outboxID}, nil
}

func (s *Service) touchPresence(ctx context.Context, deviceID, eventType string, at time.Time) {
	if s.presence == nil || deviceID == "" {
		return
	}
	if err := s.presence.Touch(ctx, deviceID, eventType, at); err != nil {
		s.logger.WarnContext(ctx, "failed to record device presence",
			"module", "application.service",
			"layer", "application",
			"operation", "touch_presence",
			"outcome", "failure",
			"device_id", deviceID,
			"error", err,
		)
	}
}

func (s *Service) DevicePresence(ctx context.Context, deviceID string) (DevicePresenceResponse, error) {
	if deviceID == "" {
		return DevicePresenceResponse{}, fmt.Errorf("%w: device id is required", domain.ErrInvalidInput)
	}
	presence, err := s.presence.Get(ctx, deviceID)
	if err != nil {
		return DevicePresenceResponse{}, err
	}
	return DevicePresenceResponse{
		DeviceID:      presence.DeviceID,
		LastSeenAt:    presence.LastSeenAt,
		LastEventType: presence.LastEventType,
	}, nil
}

func (s *Service) OutboxStats(ctx context.Context) (OutboxStatsResponse, error) {
	count, err := s.outbox.CountUnprocessed(ctx)
	if err != nil {
		return OutboxStatsResponse{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	resp := OutboxStatsResponse{UnprocessedEvents: count}
	if s.producer != nil {
		resp.Producer = s.producer.Stats()
		resp.ProducerHealth = s.producer.Health()
	}
	return resp, nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/timepay/event-listener/internal/ports"
)

var (
	ErrProducerNotStarted = errors.New("producer not started")
	ErrSendFailed         = errors.New("send failed after all retry attempts")
)

const defaultSource = "event-listener"

type ProducerConfig struct {
	Brokers      []string
	DefaultTopic string
	ClientID     string
	Source       string
	MaxRetries   int
	BaseDelay    time.Duration
}

// messageWriter is the slice of kafka.Writer the producer depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer delivers one message at a time with bounded retry. It is safe
// for concurrent use by the fast path and the sweep. Transport retries are
// disabled (MaxAttempts 1) so the envelope-level policy below is the only
// retry loop; acks from all replicas keep a transport-level resend from
// surfacing as a duplicate broker message.
type KafkaProducer struct {
	cfg    ProducerConfig
	logger *slog.Logger
	writer messageWriter

	mu        sync.Mutex
	started   bool
	startedAt time.Time
	sent      int64
	failed    int64
	bytes     int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewKafkaProducer(logger *slog.Logger, cfg ProducerConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	applyProducerDefaults(&cfg)
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  1,
		Compression:  kafka.Gzip,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 30 * time.Second,
	}
	return newKafkaProducer(logger, cfg, writer), nil
}

func newKafkaProducer(logger *slog.Logger, cfg ProducerConfig, writer messageWriter) *KafkaProducer {
	applyProducerDefaults(&cfg)
	return &KafkaProducer{
		cfg:    cfg,
		logger: logger,
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepCtx,
	}
}

func applyProducerDefaults(cfg *ProducerConfig) {
	if cfg.DefaultTopic == "" {
		cfg.DefaultTopic = "raw_events"
	}
	if cfg.Source == "" {
		cfg.Source = defaultSource
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
}

func (p *KafkaProducer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.started = true
	p.startedAt = p.now()
	p.logger.Info("kafka producer started",
		"module", "events.kafka_producer",
		"layer", "adapter",
		"operation", "start",
		"outcome", "success",
		"topic", p.cfg.DefaultTopic,
	)
	return nil
}

// Stop closes the writer, which drains any in-flight network conversations
// before returning. Sends issued after Stop fail fast.
func (p *KafkaProducer) Stop(_ context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()
	return p.writer.Close()
}

func (p *KafkaProducer) Send(ctx context.Context, input ports.SendInput) (ports.SendResult, error) {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ports.SendResult{Success: false, Error: ErrProducerNotStarted.Error()}, ErrProducerNotStarted
	}

	topic := input.Topic
	if topic == "" {
		topic = p.cfg.DefaultTopic
	}
	envelope := newEnvelope(input, topic, p.cfg.Source, p.now())
	value, err := json.Marshal(envelope)
	if err != nil {
		// Serialization failures are permanent; retrying cannot help.
		p.recordFailure()
		return ports.SendResult{
			Success:   false,
			MessageID: envelope.MessageID,
			Topic:     topic,
			Attempts:  0,
			Error:     err.Error(),
		}, fmt.Errorf("serialize message %s: %w", envelope.MessageID, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Value: value,
		Time:  p.now(),
	}
	if key := partitionKey(input); key != "" {
		msg.Key = []byte(key)
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		lastErr = p.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			p.recordSuccess(int64(len(value)))
			return ports.SendResult{
				Success:   true,
				MessageID: envelope.MessageID,
				Topic:     topic,
				Attempts:  attempt + 1,
			}, nil
		}
		if !isTransient(lastErr) {
			p.recordFailure()
			return ports.SendResult{
				Success:   false,
				MessageID: envelope.MessageID,
				Topic:     topic,
				Attempts:  attempt + 1,
				Error:     lastErr.Error(),
			}, fmt.Errorf("send message %s: %w", envelope.MessageID, lastErr)
		}
		p.logger.WarnContext(ctx, "transient send failure",
			"module", "events.kafka_producer",
			"layer", "adapter",
			"operation", "send",
			"outcome", "retry",
			"message_id", envelope.MessageID,
			"attempt", attempt+1,
			"error", lastErr,
		)
		if attempt+1 < p.cfg.MaxRetries {
			if sleepErr := p.sleep(ctx, exponentialDelay(p.cfg.BaseDelay, attempt)); sleepErr != nil {
				p.recordFailure()
				return ports.SendResult{
					Success:   false,
					MessageID: envelope.MessageID,
					Topic:     topic,
					Attempts:  attempt + 1,
					Error:     sleepErr.Error(),
				}, sleepErr
			}
		}
	}

	p.recordFailure()
	return ports.SendResult{
		Success:   false,
		MessageID: envelope.MessageID,
		Topic:     topic,
		Attempts:  p.cfg.MaxRetries,
		Error:     lastErr.Error(),
	}, fmt.Errorf("%w: message %s: %v", ErrSendFailed, envelope.MessageID, lastErr)
}

func (p *KafkaProducer) Stats() ports.ProducerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := ports.ProducerStats{
		MessagesSent:   p.sent,
		MessagesFailed: p.failed,
		BytesSent:      p.bytes,
		Running:        p.started,
	}
	if p.started {
		stats.UptimeSeconds = p.now().Sub(p.startedAt).Seconds()
	}
	return stats
}

// Health validates the client is started and can still serialize, without a
// network round trip.
func (p *KafkaProducer) Health() ports.ProducerHealth {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ports.ProducerHealth{Status: "down", Message: "producer not running"}
	}
	probe := newEnvelope(ports.SendInput{EventType: "health_check", Data: map[string]any{"health_check": true}}, p.cfg.DefaultTopic, p.cfg.Source, p.now())
	if _, err := json.Marshal(probe); err != nil {
		return ports.ProducerHealth{Status: "degraded", Message: fmt.Sprintf("serialization probe failed: %v", err)}
	}
	return ports.ProducerHealth{Status: "up", Message: "producer healthy"}
}

func (p *KafkaProducer) recordSuccess(bytes int64) {
	p.mu.Lock()
	p.sent++
	p.bytes += bytes
	p.mu.Unlock()
}

func (p *KafkaProducer) recordFailure() {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
}

func partitionKey(input ports.SendInput) string {
	if input.Key != "" {
		return input.Key
	}
	return input.CorrelationID
}

// exponentialDelay is base * 2^attempt, capped to avoid shift overflow.
func exponentialDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	return base * time.Duration(int64(1)<<attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isTransient reports whether a send failure is worth retrying: timeouts and
// temporarily unavailable brokers are; context cancellation, serialization
// trouble and broker rejections are not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		return kafkaErr.Temporary() || kafkaErr.Timeout()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	MaxDBConns int32

	KafkaBrokers       []string
	KafkaDefaultTopic  string
	KafkaClientID      string
	ProducerSource     string
	ProducerMaxRetries int
	ProducerBaseDelay  time.Duration

	SweepInterval  time.Duration
	SweepBatchSize int
	SweepGraceAge  time.Duration

	RelayMaxInFlight int
	RelayTimeout     time.Duration

	PresenceTTL            time.Duration
	HeartbeatOutboxEnabled bool
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL       string   `yaml:"postgres_url"`
		RedisURL          string   `yaml:"redis_url"`
		KafkaBrokers      []string `yaml:"kafka_brokers"`
		KafkaDefaultTopic string   `yaml:"kafka_default_topic"`
		KafkaClientID     string   `yaml:"kafka_client_id"`
	} `yaml:"dependencies"`
	Outbox struct {
		SweepIntervalSeconds int   `yaml:"sweep_interval_seconds"`
		SweepBatchSize       int   `yaml:"sweep_batch_size"`
		SweepGraceSeconds    int   `yaml:"sweep_grace_seconds"`
		HeartbeatEnabled     *bool `yaml:"heartbeat_enabled"`
	} `yaml:"outbox"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "event-listener",
		HTTPPort:               8080,
		GRPCPort:               9090,
		MaxDBConns:             20,
		KafkaDefaultTopic:      "raw_events",
		KafkaClientID:          "time-pay-producer",
		ProducerSource:         "event-listener",
		ProducerMaxRetries:     5,
		ProducerBaseDelay:      time.Second,
		SweepInterval:          10 * time.Second,
		SweepBatchSize:         100,
		SweepGraceAge:          30 * time.Second,
		RelayMaxInFlight:       32,
		RelayTimeout:           45 * time.Second,
		PresenceTTL:            24 * time.Hour,
		HeartbeatOutboxEnabled: true,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaDefaultTopic != "" {
			cfg.KafkaDefaultTopic = f.Dependencies.KafkaDefaultTopic
		}
		if f.Dependencies.KafkaClientID != "" {
			cfg.KafkaClientID = f.Dependencies.KafkaClientID
		}
		if f.Outbox.SweepIntervalSeconds > 0 {
			cfg.SweepInterval = time.Duration(f.Outbox.SweepIntervalSeconds) * time.Second
		}
		if f.Outbox.SweepBatchSize > 0 {
			cfg.SweepBatchSize = f.Outbox.SweepBatchSize
		}
		if f.Outbox.SweepGraceSeconds > 0 {
			cfg.SweepGraceAge = time.Duration(f.Outbox.SweepGraceSeconds) * time.Second
		}
		if f.Outbox.HeartbeatEnabled != nil {
			cfg.HeartbeatOutboxEnabled = *f.Outbox.HeartbeatEnabled
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaDefaultTopic = envOrDefault("KAFKA_DEFAULT_TOPIC", cfg.KafkaDefaultTopic)
	cfg.KafkaClientID = envOrDefault("KAFKA_CLIENT_ID", cfg.KafkaClientID)
	cfg.ProducerSource = envOrDefault("PRODUCER_SOURCE", cfg.ProducerSource)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.ProducerMaxRetries = envInt("PRODUCER_MAX_RETRIES", cfg.ProducerMaxRetries)
	cfg.ProducerBaseDelay = time.Duration(envInt("PRODUCER_RETRY_BASE_MS", int(cfg.ProducerBaseDelay.Milliseconds()))) * time.Millisecond
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.SweepBatchSize = envInt("SWEEP_BATCH_SIZE", cfg.SweepBatchSize)
	cfg.SweepGraceAge = time.Duration(envInt("SWEEP_GRACE_SECONDS", int(cfg.SweepGraceAge.Seconds()))) * time.Second
	cfg.RelayMaxInFlight = envInt("RELAY_MAX_IN_FLIGHT", cfg.RelayMaxInFlight)
	cfg.RelayTimeout = time.Duration(envInt("RELAY_TIMEOUT_SECONDS", int(cfg.RelayTimeout.Seconds()))) * time.Second
	cfg.PresenceTTL = time.Duration(envInt("PRESENCE_TTL_HOURS", int(cfg.PresenceTTL.Hours()))) * time.Hour
	cfg.HeartbeatOutboxEnabled = envBool("HEARTBEAT_OUTBOX_ENABLED", cfg.HeartbeatOutboxEnabled)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

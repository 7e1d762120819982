package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timepay/event-listener/internal/adapters/cache"
	eventadapter "github.com/timepay/event-listener/internal/adapters/events"
	httpadapter "github.com/timepay/event-listener/internal/adapters/http"
	"github.com/timepay/event-listener/internal/adapters/postgres"
	"github.com/timepay/event-listener/internal/application"
	"github.com/timepay/event-listener/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// managedProducer is a producer with an owned lifecycle; both the Kafka and
// the logging producer satisfy it.
type managedProducer interface {
	ports.EventProducer
	ports.StatsReporter
	Start() error
	Stop(ctx context.Context) error
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	healthSrv  *health.Server
	producer   managedProducer
	relay      *eventadapter.RelayDispatcher
	sweep      *eventadapter.SweepProcessor
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	presence := cache.NewRedisPresenceStore(redisClient, cfg.PresenceTTL)

	repos := postgres.NewRepositories(db)

	var producer managedProducer = eventadapter.NewLoggingProducer(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, pubErr := eventadapter.NewKafkaProducer(logger, eventadapter.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			DefaultTopic: cfg.KafkaDefaultTopic,
			ClientID:     cfg.KafkaClientID,
			Source:       cfg.ProducerSource,
			MaxRetries:   cfg.ProducerMaxRetries,
			BaseDelay:    cfg.ProducerBaseDelay,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka producer disabled, using logging producer", "error", pubErr)
		} else {
			producer = kafkaProducer
		}
	}

	relay := eventadapter.NewRelayDispatcher(logger, repos.Outbox, producer, cfg.RelayMaxInFlight, cfg.RelayTimeout)
	sweep := eventadapter.NewSweepProcessor(logger, repos.Outbox, producer, cfg.SweepInterval, cfg.SweepBatchSize, cfg.SweepGraceAge)

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:            cfg.ServiceID,
			HeartbeatOutboxEnabled: cfg.HeartbeatOutboxEnabled,
			PresenceTTL:            cfg.PresenceTTL,
		},
		Logger:     logger,
		Tx:         repos,
		Outbox:     repos.Outbox,
		Presence:   presence,
		Dispatcher: relay,
		Producer:   producer,
	})

	ready := func(ctx context.Context) error {
		if err := postgres.Ping(ctx, db); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if h := producer.Health(); h.Status == "down" {
			return fmt.Errorf("producer: %s", h.Message)
		}
		return nil
	}
	handler := httpadapter.NewHandler(service, ready)
	router := httpadapter.NewRouter(handler, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		producer:   producer,
		relay:      relay,
		sweep:      sweep,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.producer.Start(); err != nil {
		return fmt.Errorf("start producer: %w", err)
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.producer.Stop(stopCtx)
		r.cleanupFn(stopCtx)
		return err
	}
	r.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}

	r.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	// Let in-flight fast-path dispatches finish before the producer drains.
	if err := r.relay.Close(shutdownCtx); err != nil {
		r.logger.Warn("abandoned in-flight dispatches on shutdown", "error", err)
	}
	_ = r.producer.Stop(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.producer.Start(); err != nil {
		return fmt.Errorf("start producer: %w", err)
	}

	errCh := make(chan error, 1)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go func() {
		errCh <- r.sweep.Run(sweepCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		// Graceful stop: current cycle finishes, then the loop exits.
		r.sweep.Stop()
		select {
		case <-errCh:
		case <-time.After(30 * time.Second):
			cancelSweep()
			<-errCh
		}
	case runErr = <-errCh:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.producer.Stop(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return runErr
}

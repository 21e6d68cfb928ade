package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viralforge/deal-agents/internal/adapters/cache"
	eventadapter "github.com/viralforge/deal-agents/internal/adapters/events"
	grpcadapter "github.com/viralforge/deal-agents/internal/adapters/grpc"
	httpadapter "github.com/viralforge/deal-agents/internal/adapters/http"
	"github.com/viralforge/deal-agents/internal/adapters/memory"
	"github.com/viralforge/deal-agents/internal/adapters/oracle"
	"github.com/viralforge/deal-agents/internal/adapters/postgres"
	"github.com/viralforge/deal-agents/internal/adapters/transfer"
	"github.com/viralforge/deal-agents/internal/application"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/platform/telemetry"
	"github.com/viralforge/deal-agents/internal/ports"
	"google.golang.org/grpc"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	// relayInAPI is set when the outbox lives in process memory and only the
	// API process can see it.
	relayInAPI bool
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var closers []func(context.Context)
	cleanup := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](ctx)
		}
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceID,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Insecure:     cfg.OTLPInsecure,
		SampleRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		logger.WarnContext(ctx, "tracing disabled", "error", err)
	} else {
		closers = append(closers, func(ctx context.Context) { _ = shutdownTracing(ctx) })
	}

	var (
		ledger     ports.Ledger
		outboxRepo ports.OutboxRepository
		relayInAPI bool
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, postgres.Options{URL: cfg.DatabaseURL, MaxConns: cfg.MaxDBConns})
		if err != nil {
			cleanup(ctx)
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			cleanup(ctx)
			return nil, err
		}
		closers = append(closers, func(context.Context) { _ = sqlDB.Close() })
		if err := postgres.RunMigrations(ctx, db); err != nil {
			cleanup(ctx)
			return nil, err
		}
		repos := postgres.NewRepositories(db)
		ledger, outboxRepo = repos.Ledger, repos.Outbox
	} else {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory ledger and outbox")
		ledger, outboxRepo = memory.NewLedger(), memory.NewOutbox()
		relayInAPI = true
	}

	var locker ports.RunLocker
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup(ctx)
			return nil, err
		}
		closers = append(closers, func(context.Context) { _ = redisClient.Close() })
		locker = cache.NewRedisRunLocker(redisClient)
	} else {
		logger.WarnContext(ctx, "REDIS_URL not set, run locks are process-local")
		locker = memory.NewRunLocker()
	}

	chatClient, err := oracle.NewChatClient(oracle.Config{
		Provider:          cfg.OracleProvider,
		BaseURL:           cfg.OracleBaseURL,
		APIKey:            cfg.OracleAPIKey,
		Model:             cfg.OracleModel,
		Timeout:           cfg.OracleTimeout,
		RequestsPerSecond: cfg.OracleRequestsPerSecond,
		Burst:             cfg.OracleBurst,
	})
	if err != nil {
		cleanup(ctx)
		return nil, err
	}
	if cfg.OracleAPIKey == "" {
		logger.WarnContext(ctx, "oracle API key not set, oracle calls will be unauthenticated", "provider", cfg.OracleProvider)
	}

	var executor ports.TransferExecutor
	if cfg.PrivateKey != "" {
		evm, err := transfer.NewEVMExecutor(transfer.Config{
			PrivateKeyHex: cfg.PrivateKey,
			SenderAddress: cfg.WalletAddress,
			RPCURLs:       cfg.RPCURLs,
		})
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init transfer executor: %w", err)
		}
		closers = append(closers, func(context.Context) { evm.Close() })
		if cfg.WalletAddress == "" {
			cfg.WalletAddress = evm.Sender()
		}
		executor = evm
	} else {
		logger.WarnContext(ctx, "X402_PRIVATE_KEY not set, settlements cannot transfer funds")
	}
	if _, ok := domain.LookupNetwork(cfg.Network); !ok {
		cleanup(ctx)
		return nil, fmt.Errorf("unknown X402_NETWORK %q", cfg.Network)
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:     cfg.ServiceID,
			MaxRounds:       cfg.MaxRounds,
			SenderAddress:   cfg.WalletAddress,
			Network:         cfg.Network,
			OracleTimeout:   cfg.OracleTimeout,
			TransferTimeout: cfg.TransferTimeout,
			LockTTL:         cfg.LockTTL,
			ActivityLimit:   cfg.ActivityLimit,
		},
		Oracle:   oracle.NewLLMOracle(chatClient),
		Ledger:   ledger,
		Transfer: executor,
		Locker:   locker,
		Outbox:   outboxRepo,
	})

	handler := httpadapter.NewHandler(service, cfg.JWTSecret)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewHealthServer(service))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer())
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			domain.EventNegotiationClosed: cfg.KafkaTopicNegotiationClose,
			domain.EventSettlementClosed:  cfg.KafkaTopicSettlementClose,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, closeWith(kafkaPublisher))
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(
			cfg.KafkaBrokers,
			cfg.KafkaConsumerGroup,
			[]string{cfg.KafkaTopicContentSubmitted},
		)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, closeWith(kafkaConsumer))
		}
	} else {
		logger.WarnContext(ctx, "KAFKA_BROKERS not set, events are logged and submissions are not consumed")
	}
	outbox := eventadapter.NewOutboxWorker(logger, outboxRepo, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	consumer := eventadapter.NewConsumerWorker(logger, consumerAdapter, service, cfg.KafkaTopicContentSubmitted, cfg.ConsumerPollInterval)

	readiness := service.Readiness()
	logger.InfoContext(ctx, "runtime initialized",
		"negotiation", readiness.Negotiation,
		"settlement", readiness.Settlement,
		"network", cfg.Network,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		consumer:   consumer,
		relayInAPI: relayInAPI,
		cleanupFn:  cleanup,
	}, nil
}

func closeWith(c io.Closer) func(context.Context) {
	return func(context.Context) { _ = c.Close() }
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	go func() {
		r.logger.InfoContext(ctx, "http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.InfoContext(ctx, "grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	if r.relayInAPI {
		go func() {
			if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("outbox worker: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	if r.relayInAPI {
		r.logger.WarnContext(ctx, "worker has no shared outbox, only consuming submissions")
	} else {
		go func() {
			if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}
	go func() {
		if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "worker started")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	_ = r.grpcLis.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return runErr
}

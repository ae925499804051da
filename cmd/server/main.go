package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/tableledger/internal/adapter/http"
	"github.com/iho/tableledger/internal/adapter/http/handler"
	"github.com/iho/tableledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/tableledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/tableledger/internal/adapter/repository/redis"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/auth"
	"github.com/iho/tableledger/internal/infrastructure/config"
	"github.com/iho/tableledger/internal/infrastructure/eventpublisher"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
	"github.com/iho/tableledger/internal/infrastructure/postgres"
	"github.com/iho/tableledger/internal/infrastructure/redis"
	"github.com/iho/tableledger/internal/usecase"
)

// localPrincipal acts for every API request when authentication is off.
var localPrincipal = domain.Principal{UserID: "local", Service: true}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegisterer(registry)

	// Migrations
	if err := postgres.RunMigrations(log, cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		return err
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		MaxConnLifetime: cfg.DatabaseConnLife,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClientWithConfig(ctx, redis.ClientConfig{
		URL:            cfg.RedisURL,
		PoolSize:       cfg.RedisPoolSize,
		ConnectRetries: 5,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	chart, err := loadChart(cfg.ChartTemplatePath)
	if err != nil {
		return err
	}

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	retrier := postgresRepo.NewRetrier(log, m)
	authz := postgresRepo.NewMembershipAuthorizer(pool)
	calendar := postgresRepo.NewFiscalCalendar(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	eventRepo := postgresRepo.NewEventRepository(pool)
	ruleRepo := postgresRepo.NewRuleRepository(pool)
	boundaryRepo := postgresRepo.NewBoundaryRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()

	balanceCache := redisRepo.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Use cases
	balanceUC := usecase.NewBalanceUseCase(txManager, authz, accountRepo, entryRepo, ledgerRepo, auditRepo, balanceCache, idGen, log, m)
	accountUC := usecase.NewAccountUseCase(txManager, authz, accountRepo, outboxRepo, auditRepo, idGen, log, m)
	ledgerUC := usecase.NewLedgerUseCase(txManager, retrier, authz, accountRepo, entryRepo, ledgerRepo, outboxRepo, auditRepo, balanceUC, idGen, log, m)
	categorizationUC := usecase.NewCategorizationUseCase(txManager, retrier, authz, calendar, accountRepo, eventRepo, entryRepo, ledgerUC, outboxRepo, auditRepo, balanceUC, idGen, log, m)
	splitUC := usecase.NewSplitUseCase(txManager, retrier, authz, calendar, eventRepo, entryRepo, ledgerUC, outboxRepo, auditRepo, balanceUC, idGen, log, m)
	transferUC := usecase.NewTransferUseCase(txManager, retrier, authz, calendar, eventRepo, entryRepo, ledgerUC, outboxRepo, auditRepo, balanceUC, idGen, log, m)
	ruleUC := usecase.NewRuleUseCase(authz, accountRepo, ruleRepo, eventRepo, outboxRepo, auditRepo, categorizationUC, splitUC, idGen, log, m)
	reconciliationUC := usecase.NewReconciliationUseCase(txManager, retrier, authz, accountRepo, boundaryRepo, eventRepo, entryRepo, ledgerRepo, ledgerUC, balanceUC, outboxRepo, auditRepo, idGen, log, m)

	// Outbox relay
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  newOutboxPublisher(cfg, redisClient, log),
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})
	go func() {
		if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("outbox publisher stopped")
		}
	}()

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
		go rateLimiter.RunCleanup(ctx, time.Minute, 10*time.Minute)
	}

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	healthHandler := handler.NewHealthHandler(map[string]handler.PingFunc{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accountUC, chart),
		EntryHandler:     handler.NewEntryHandler(ledgerUC),
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		EventHandler:     handler.NewEventHandler(categorizationUC),
		SplitHandler:     handler.NewSplitHandler(splitUC),
		TransferHandler:  handler.NewTransferHandler(transferUC),
		RuleHandler:      handler.NewRuleHandler(ruleUC, cfg.RuleBatchLimit),
		BoundaryHandler:  handler.NewBoundaryHandler(reconciliationUC),
		BalanceHandler:   handler.NewBalanceHandler(balanceUC),
		HealthHandler:    healthHandler,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Logger:           log,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimiter:      rateLimiter,
		JWTManager:       jwtManager,
		AuthEnabled:      cfg.AuthEnabled,
		DefaultPrincipal: localPrincipal,
	})

	server := newHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Bool("auth", cfg.AuthEnabled).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func validateConfig(cfg *config.Config) error {
	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		return errors.New("AUTH_ENABLED requires JWT_SECRET")
	}
	if cfg.OutboxSink != "redis" && cfg.OutboxSink != "log" {
		return fmt.Errorf("OUTBOX_SINK must be redis or log, got %q", cfg.OutboxSink)
	}
	if cfg.RuleBatchLimit <= 0 {
		return fmt.Errorf("RULE_BATCH_LIMIT must be positive, got %d", cfg.RuleBatchLimit)
	}
	return nil
}

func newOutboxPublisher(cfg *config.Config, client *goredis.Client, log zerolog.Logger) eventpublisher.Publisher {
	if cfg.OutboxSink == "log" {
		return eventpublisher.NewLogPublisher(log)
	}
	return eventpublisher.NewRedisPublisher(client, cfg.EventsChannel, cfg.OpsChannel)
}

func loadChart(path string) (*domain.ChartTemplate, error) {
	if path == "" {
		return domain.DefaultChart()
	}
	return domain.LoadChart(path)
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

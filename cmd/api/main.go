package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailroom/internal/config"
	"mailroom/internal/handler"
	"mailroom/internal/infra/postgresql"
	"mailroom/internal/infra/postgresql/migrations"
	infraredis "mailroom/internal/infra/redis"
	"mailroom/internal/observability"
	"mailroom/internal/provider"
	"mailroom/internal/queue"
	"mailroom/internal/ratelimit"
	"mailroom/internal/repository"
	"mailroom/internal/service"
	"mailroom/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	var rateLimiter ratelimit.RateLimiter
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.SendRatePerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
		rateLimiter = limiter
	} else {
		logger.Warn("redis not configured, provider rate limiting is per-invocation only")
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		publisher = queue.NewRabbitMQPublisher(rabbit)
	}
	defer publisher.Close()

	emailProvider, err := provider.NewResendProvider(cfg.ResendAPIKey, cfg.ResendBaseURL)
	if err != nil {
		logger.Fatal("provider initialization failed", zap.Error(err))
	}

	verifier, err := provider.NewWebhookVerifier(cfg.ResendWebhookSecret, cfg.WebhookToleranceSec)
	if err != nil {
		logger.Fatal("webhook verifier initialization failed", zap.Error(err))
	}

	queueRepo := repository.NewGormQueueRepo(db)
	ledgerRepo := repository.NewGormLedgerRepo(db)
	bulkRepo := repository.NewGormBulkSendRepo(db)
	eventRepo := repository.NewGormEventRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)
	storeRepo := repository.NewGormStoreRepo(db)

	metrics := observability.NewMetrics()

	dispatcher, err := service.NewDispatchService(
		queueRepo,
		ledgerRepo,
		service.NewTemplateResolver(templateRepo, logger),
		service.NewSenderResolver(storeRepo),
		emailProvider,
		rateLimiter,
		cfg.DispatchBatchLimit,
		cfg.SendRatePerSec,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	reconciler, err := service.NewReconcileService(ledgerRepo, bulkRepo, eventRepo, publisher, logger)
	if err != nil {
		logger.Fatal("reconcile service initialization failed", zap.Error(err))
	}
	reconciler.SetMetrics(metrics)

	ticker, err := service.NewDispatchTicker(
		dispatcher,
		time.Duration(cfg.DispatchIntervalSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch ticker initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(transport.RequestID())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterDispatchRoutes(app, dispatcher, cfg.ServiceSecret); err != nil {
		logger.Fatal("failed to register dispatch routes", zap.Error(err))
	}
	if err := handler.RegisterWebhookRoutes(app, reconciler, verifier, logger); err != nil {
		logger.Fatal("failed to register webhook routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("mailroom api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return ticker.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("mailroom api exited with error", zap.Error(err))
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/task-management/internal/api/http"
	"github.com/spec-kit/task-management/internal/api/http/handlers"
	"github.com/spec-kit/task-management/internal/api/rpc"
	"github.com/spec-kit/task-management/internal/auth"
	"github.com/spec-kit/task-management/internal/authn"
	"github.com/spec-kit/task-management/internal/config"
	"github.com/spec-kit/task-management/internal/events"
	"github.com/spec-kit/task-management/internal/observability"
	"github.com/spec-kit/task-management/internal/persistence"
	"github.com/spec-kit/task-management/internal/repository"
	"github.com/spec-kit/task-management/internal/service"
	"github.com/spec-kit/task-management/internal/userclient"
	"github.com/spec-kit/task-management/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", ".env", "env file loaded before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(config.ServiceTask, *envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("service", cfg.App.Name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Postgres.RunMigrations || *migrateOnly {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, persistence.MigrationsTask, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	if *migrateOnly {
		return
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("task_backend", registry)

	var validator authn.TokenValidator
	switch cfg.UserService.ValidationTransport {
	case authn.TransportHTTP:
		validator = authn.NewHTTPValidator(cfg.UserService.URL, cfg.UserService.ValidationTimeout())
	case authn.TransportLocal:
		logger.Warn("validating tokens locally; deleted users keep access until their tokens expire")
		validator = authn.NewLocalValidator(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, clock.WallClock))
	default:
		client, err := rpc.NewClient(cfg.UserService.GRPCTarget, cfg.App.Name, cfg.Auth.ServiceToken)
		if err != nil {
			logger.Fatal("failed to create user-service grpc client", zap.Error(err))
		}
		defer client.Close()
		validator = authn.NewRPCValidator(client)
	}
	logger.Info("token validation configured", zap.String("transport", validator.Transport()))

	dispatcher := events.NewInMemoryDispatcher()
	publisher := events.NewRedisPublisher(redis.Client, cfg.Events.RedisChannel)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, logger.Named("events")))

	pool := pg.PoolHandle()
	taskRepo := repository.NewTaskRepository(pool)
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:       taskRepo,
		HistoryRepo:    repository.NewStatusChangeRepository(pool),
		Owners:         userclient.New(cfg.UserService.URL, cfg.UserService.Timeout(), logger.Named("userclient")),
		Dispatcher:     dispatcher,
		PublishTimeout: cfg.Events.PublishTimeout(),
		Clock:          clock.WallClock,
		Logger:         logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterTaskBackendRoutes(app, httptransport.TaskBackendRoutes{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tasks:         handlers.NewTasksHandler(taskService),
		Authenticator: authn.NewAuthenticator(validator, cfg.UserService.ValidationTimeout(), logger.Named("authn"), metrics),
		Metrics:       metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("task-backend started", zap.String("http", cfg.App.Addr()))

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

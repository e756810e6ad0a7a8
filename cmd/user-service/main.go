package main

import (
	"context"
	"log"
	"net"
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
	"github.com/spec-kit/task-management/internal/config"
	"github.com/spec-kit/task-management/internal/observability"
	"github.com/spec-kit/task-management/internal/persistence"
	"github.com/spec-kit/task-management/internal/repository"
	"github.com/spec-kit/task-management/internal/service"
)

func main() {
	envFile := pflag.String("env-file", ".env", "env file loaded before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(config.ServiceUser, *envFile)
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
		if err := persistence.RunMigrations(cfg.Postgres.DSN, persistence.MigrationsUser, logger); err != nil {
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
	metrics := observability.NewMetrics("user_service", registry)

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, clock.WallClock)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     userRepo,
		TokenManager: tokens,
		BcryptCost:   cfg.Auth.BcryptCost,
		Logger:       logger,
	})
	userService := service.NewUserService(userRepo)
	validationService := service.NewTokenValidationService(tokens, userRepo, logger)
	oauthService := service.NewOAuthService(service.OAuthDependencies{
		Providers: service.ProvidersFromConfig(cfg.OAuth2),
		BaseURL:   cfg.OAuth2.BaseURL,
		States:    service.NewRedisStateStore(redis.Client),
		StateTTL:  cfg.OAuth2.StateTTL(),
		UserRepo:  userRepo,
		Logger:    logger,
	})

	_, grpcServer := rpc.NewServer(rpc.ServerDependencies{
		Validation:   validationService,
		Users:        userService,
		ServiceToken: cfg.Auth.ServiceToken,
		Logger:       logger.Named("grpc"),
		Metrics:      metrics,
	})
	grpcListener, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		logger.Fatal("grpc listen", zap.Error(err))
	}
	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	}()

	internalGuard, err := httptransport.InternalOnly(cfg.Internal.AllowedCIDRs, logger)
	if err != nil {
		logger.Fatal("invalid internal network allowlist", zap.Error(err))
	}
	limiter := httptransport.NewIPRateLimiter(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst)
	go limiter.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterUserServiceRoutes(app, httptransport.UserServiceRoutes{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Validation:     handlers.NewValidationHandler(validationService),
		Users:          handlers.NewUsersHandler(userService),
		Internal:       handlers.NewInternalUsersHandler(userService),
		OAuth2:         handlers.NewOAuth2Handler(oauthService, authService, cfg.OAuth2.FrontendRedirectURL, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo, logger),
		RateLimiter:    limiter,
		InternalGuard:  internalGuard,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("user-service started", zap.String("http", cfg.App.Addr()), zap.String("grpc", cfg.GRPC.Addr()))

	waitForShutdown(logger)

	cancel()
	grpcServer.GracefulStop()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

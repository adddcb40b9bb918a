package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/authctx"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/messaging"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
	"github.com/spec-kit/identity-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the token sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()
	cfg, logger := deps.cfg, deps.logger

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry, cfg.App, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, deps.pg.Pool, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher, closeBus, err := newDispatcher(ctx, cfg, redis, metrics, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	pool := deps.pg.Pool
	userRepo := repository.NewUserRepository(pool)
	accessTokens := auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.AccessTokenTTL)
	systemIdentity := auth.NewSystemIdentity(cfg.Auth.SystemSecret)

	tokenService := service.NewTokenService(service.TokenDependencies{
		TokenRepo:  repository.NewTokenRepository(pool),
		Signer:     auth.NewJWTSigner(cfg.Auth.TokenSecret, domain.TokenIDLength),
		Dispatcher: dispatcher,
		Logger:     logger.Named("tokens"),
	})
	emailService := service.NewEmailService(service.EmailDependencies{
		Mailer:      service.NewLogMailer(logger.Named("mailer")),
		Dispatcher:  dispatcher,
		DefaultFrom: cfg.Mail.From,
		Logger:      logger.Named("emails"),
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:      userRepo,
		Tokens:        tokenService,
		Emails:        emailService,
		Hasher:        auth.BcryptHasher{Cost: cfg.Auth.BcryptCost},
		AccessTokens:  accessTokens,
		Dispatcher:    dispatcher,
		System:        authctx.System{Name: cfg.App.Name, Version: cfg.App.Version, InstanceID: cfg.App.InstanceID},
		BaseURL:       cfg.App.BaseURL,
		LoginTokenTTL: cfg.Auth.LoginTokenTTL,
		ResetTokenTTL: cfg.Auth.PasswordResetTokenTTL,
		Logger:        logger.Named("users"),
	})
	fileService := service.NewFileService(service.FileDependencies{
		FileRepo:   repository.NewFileRepository(pool),
		Dispatcher: dispatcher,
		Logger:     logger.Named("files"),
	})

	sweeper, err := worker.NewTokenSweeper(cfg.Sweep.Schedule, tokenService, logger.Named("sweeper"))
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			map[string]handlers.Pinger{"postgres": deps.pg, "redis": redis}, metrics),
		Users:          handlers.NewUsersHandler(userService),
		Files:          handlers.NewFilesHandler(fileService),
		Emails:         handlers.NewEmailsHandler(emailService),
		AuthMiddleware: auth.NewAuthMiddleware(accessTokens, systemIdentity, userRepo),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// newDispatcher fans events out to in-process observers and, unless the transport is
// "memory", to the message bus.
func newDispatcher(ctx context.Context, cfg *config.Config, redis *persistence.Redis, metrics *observability.Metrics,
	logger *zap.Logger) (events.Dispatcher, func(), error) {
	local := events.NewInMemoryDispatcher(logger.Named("events"))
	worker.RegisterEventObservers(local, logger.Named("events"), metrics)

	var (
		transport events.Transport
		closeFn   = func() {}
	)
	switch cfg.Events.Transport {
	case "amqp":
		amqpTransport, err := messaging.DialAMQP(cfg.Events.AMQPURL, logger)
		if err != nil {
			return nil, nil, err
		}
		transport, closeFn = amqpTransport, amqpTransport.Close
	case "redis":
		transport = messaging.NewRedisTransport(redis.Client)
	default:
		return local, closeFn, nil
	}

	bus := events.NewBusDispatcher(transport, cfg.Events.Exchange, logger.Named("bus"))
	if err := bus.Init(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return events.Fanout{local, bus}, closeFn, nil
}

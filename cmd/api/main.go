package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/event-admin/internal/api/http"
	"github.com/spec-kit/event-admin/internal/api/http/handlers"
	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/config"
	"github.com/spec-kit/event-admin/internal/events"
	"github.com/spec-kit/event-admin/internal/observability"
	"github.com/spec-kit/event-admin/internal/persistence"
	"github.com/spec-kit/event-admin/internal/repository"
	"github.com/spec-kit/event-admin/internal/revocation"
	"github.com/spec-kit/event-admin/internal/service"
	"github.com/spec-kit/event-admin/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := revocation.New(redis.RevocationClient(), revocation.Options{
		KeyPrefix:       cfg.Revocation.KeyPrefix,
		MinTTL:          cfg.Revocation.MinTTL,
		ConnectAttempts: cfg.Revocation.ConnectAttempts,
		BackoffBase:     cfg.Revocation.BackoffBase,
		BackoffMax:      cfg.Revocation.BackoffMax,
		OpTimeout:       cfg.Redis.OpTimeout,
		FailClosed:      cfg.Revocation.FailClosed,
	},
		revocation.WithLogger(logger.Named("revocation")),
		revocation.WithDegradedHook(metrics.RecordRevocationDegraded),
		revocation.WithListener(func(t revocation.Transition) {
			metrics.SetRevocationState(int(t.To))
			payload := events.RevocationStateChangedPayload{From: t.From.String(), To: t.To.String()}
			if t.Err != nil {
				payload.Error = t.Err.Error()
			}
			_ = dispatcher.Publish(context.Background(), events.New(events.EventRevocationStateChanged, events.Actor{}, t.At, payload))
		}),
	)
	metrics.SetRevocationState(int(store.State()))

	auditService := service.NewAuditService(dispatcher, logger)
	worker.StartAuditWorker(auditService)

	// Connect before serving so no request is checked against a store that
	// is still connecting. Attempts are bounded by REVOCATION_CONNECT_ATTEMPTS.
	connectRevocationStore(ctx, store, logger)

	pool := pg.PoolHandle()
	staffRepo := repository.NewStaffRepository(pool)
	ministerRepo := repository.NewMinisterRepository(pool)
	guestRepo := repository.NewGuestRepository(pool)
	directory := repository.NewActorDirectory(staffRepo, ministerRepo, guestRepo)

	signer := auth.NewSigner(cfg.Auth.JWTSecret, auth.WithIssuer(cfg.Auth.Issuer))
	issuer := auth.NewIssuer(signer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	staffValidator := auth.NewStaffValidator(directory)
	ministerValidator := auth.NewMinisterValidator(directory)
	guestValidator := auth.NewGuestValidator(directory)

	staffGuard := auth.NewGuard(signer, store, staffValidator)
	ministerGuard := auth.NewGuard(signer, store, ministerValidator)
	guestGuard := auth.NewGuard(signer, store, guestValidator)

	sessions := auth.NewSessions(auth.SessionsConfig{
		Signer:            signer,
		Issuer:            issuer,
		Store:             store,
		Validators:        []*auth.Validator{staffValidator, ministerValidator, guestValidator},
		Events:            dispatcher,
		Logger:            logger.Named("sessions"),
		RevokeAllOnReplay: cfg.Auth.RevokeAllOnReplay,
	})

	authService := service.NewAuthService(service.AuthDependencies{
		StaffRepo:    staffRepo,
		MinisterRepo: ministerRepo,
		GuestRepo:    guestRepo,
		Sessions:     sessions,
		Dispatcher:   dispatcher,
		Logger:       logger,
		BcryptCost:   cfg.Auth.BcryptCost,
	})
	staffService := service.NewStaffService(service.DirectoryDependencies{
		StaffRepo:    staffRepo,
		MinisterRepo: ministerRepo,
		Sessions:     sessions,
		BcryptCost:   cfg.Auth.BcryptCost,
	})

	guards := httptransport.Guards{
		Staff:  auth.NewAuthMiddleware(staffGuard, "staff", logger, metrics),
		Any:    auth.NewAuthMiddleware(auth.AnyOf(store, staffGuard, ministerGuard, guestGuard), "any", logger, metrics),
		Portal: auth.NewAuthMiddleware(auth.AnyOf(store, ministerGuard, guestGuard), "portal", logger, metrics),
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, store),
		Auth:    handlers.NewAuthHandler(authService),
		Admin:   handlers.NewAdminHandler(staffService),
		Me:      handlers.NewMeHandler(),
		Guards:  guards,
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// connectRevocationStore runs the bounded startup attempts and returns the
// resulting state. Failure is logged; the service keeps running without
// revocation.
func connectRevocationStore(ctx context.Context, store *revocation.Store, logger *zap.Logger) revocation.State {
	if err := store.Connect(ctx); err != nil {
		logger.Warn("continuing without revocation store", zap.Error(err))
	}
	return store.State()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

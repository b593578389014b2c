package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/service-sphere/internal/http/router"
	"github.com/diagnosis/service-sphere/internal/platform/mailer"
	"github.com/diagnosis/service-sphere/internal/platform/password"
	"github.com/diagnosis/service-sphere/internal/ratelimit"
	"github.com/diagnosis/service-sphere/internal/repo/postgres"
	"github.com/diagnosis/service-sphere/internal/service"
	"github.com/diagnosis/service-sphere/pkg/auth"
	"github.com/diagnosis/service-sphere/pkg/config"
	"github.com/diagnosis/service-sphere/pkg/database"
	"github.com/diagnosis/service-sphere/pkg/events"
	"github.com/diagnosis/service-sphere/pkg/logger"
	"github.com/diagnosis/service-sphere/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, cfg.Server.LogLevel))
	if err := cfg.Validate(); err != nil {
		return err
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.ApplySchema {
		if err := db.ApplySchema(ctx); err != nil {
			return err
		}
	}

	hasher, err := password.NewHasher(cfg.Auth.PasswordHash, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	if cfg.Database.SeedDemo {
		hash, err := hasher.Hash(database.DemoPassword)
		if err != nil {
			return err
		}
		if err := db.SeedDemo(ctx, hash); err != nil {
			return err
		}
		logger.Info("Demo data ready", "email", database.DemoEmail)
	}

	var limiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		client, err := ratelimit.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, "auth", cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow)
	}

	var eventBus events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			return err
		}
		eventBus = bus
	}
	defer eventBus.Close()

	backend, err := mailer.New(cfg.Email)
	if err != nil {
		return err
	}
	mail := mailer.NewAsync(backend, cfg.Email.SendTimeout, cfg.Email.MaxInFlight)

	userRepo := postgres.NewUsersRepo(db.Pool)
	bookingRepo := postgres.NewBookingsRepo(db.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepo(db.Pool)

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService, err := service.NewAuthService(userRepo, hasher, tokens, mail, eventBus)
	if err != nil {
		return err
	}
	bookingService := service.NewBookingService(bookingRepo, idempotencyRepo, userRepo, mail, eventBus)

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: router.New(router.Deps{
			Auth:           authService,
			Bookings:       bookingService,
			AuthLimiter:    limiter,
			DB:             db,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			TrustProxy:     cfg.Server.TrustProxy,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting service-sphere", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := idempotencyRepo.CleanupExpired(gctx)
				if err != nil {
					logger.Error("Idempotency cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("Removed expired idempotency keys", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down service-sphere...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		mail.Wait()
		return err
	})

	return g.Wait()
}

// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"librarium/internal/config"
	"librarium/internal/httpapi"
	"librarium/internal/logging"
	"librarium/internal/server"
	"librarium/internal/storage/postgres"
	"librarium/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := logging.New(cfg.AppName, cfg.Env)

	if err := run(cfg, logger); err != nil {
		logger.Fatal(err)
	}
}

// run serves until SIGINT/SIGTERM or a listener failure. Deferred cleanup always runs before it returns.
func run(cfg *config.Config, logger *logrus.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.AppName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if ferr := shutdownTelemetry(flushCtx); ferr != nil {
			logger.WithError(ferr).Warn("failed to flush telemetry")
		}
	}()

	db, err := postgres.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, postgres.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(db.DB, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	handler, err := server.NewRouter(server.Deps{
		Store:         postgres.NewStore(db),
		Logger:        logger,
		Limiter:       limiter,
		MeterProvider: otel.GetMeterProvider(),
		TxMaxAttempts: cfg.TxMaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("librarium listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		err = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.WithError(serr).Error("graceful shutdown failed")
	}
	return err
}

// newLimiter picks the shared redis limiter when REDIS_ADDR is set and the local one otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (httpapi.Limiter, func()) {
	if cfg.RateLimitRPS <= 0 {
		return nil, func() {}
	}
	if cfg.RedisAddr == "" {
		return httpapi.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, falling back to local rate limiter")
		_ = client.Close()
		return httpapi.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), func() {}
	}

	perSecond := int(cfg.RateLimitRPS)
	if perSecond < 1 {
		perSecond = 1
	}
	return httpapi.NewRedisLimiter(client, perSecond+cfg.RateLimitBurst, time.Second), func() { _ = client.Close() }
}

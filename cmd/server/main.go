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

	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/clock"
	"github.com/jw6ventures/crmcal/internal/config"
	httpserver "github.com/jw6ventures/crmcal/internal/http"
	"github.com/jw6ventures/crmcal/internal/logging"
	"github.com/jw6ventures/crmcal/internal/notify"
	"github.com/jw6ventures/crmcal/internal/store"
	"github.com/jw6ventures/crmcal/internal/ui"
	"github.com/jw6ventures/crmcal/internal/weekview"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting crmcal", zap.String("addr", cfg.ListenAddr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Open(ctx, store.PoolConfig{DSN: cfg.DB.DSN, MaxConns: cfg.DB.MaxConns, MaxConnLifetime: time.Hour})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	stor := store.New(pool)

	var publisher calendar.Publisher = notify.LogPublisher{Logger: logger}
	if cfg.Redis.URL != "" {
		client, err := notify.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		publisher = notify.NewRedisPublisher(client, cfg.Redis.Channel, logger)
		logger.Info("publishing event changes to redis", zap.String("channel", cfg.Redis.Channel))
	} else {
		logger.Warn("APP_REDIS_URL not set, event changes are only logged")
	}

	clk := clock.System{}
	api := ui.NewHandler(cfg, stor, publisher, clk, logger)

	ticker := weekview.NewNowTicker(clk, logger)
	unsubscribe := ticker.Subscribe(api.SweepSessions)
	defer unsubscribe()
	go func() {
		if err := ticker.Run(ctx); err != nil {
			logger.Error("now ticker stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpserver.NewRouter(cfg, stor, api, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

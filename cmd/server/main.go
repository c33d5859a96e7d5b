package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/api"
	"github.com/Harshitk-cp/factgraph/internal/bootstrap"
	"github.com/Harshitk-cp/factgraph/internal/buildconfig"
	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	engine, err := bootstrap.Open(ctx, logger)
	if err != nil {
		logger.Fatal("failed to start engine", zap.Error(err))
	}
	defer engine.Close()

	app := api.NewApp(api.Deps{
		Store:      engine.Store,
		Clients:    engine.Clients,
		Runner:     engine.Runner,
		Query:      engine.Query,
		ClientSvc:  engine.ClientSvc,
		Metrics:    engine.Metrics,
		Gatherer:   engine.Registry,
		AdminToken: config.AdminToken(),
		RateRPS:    config.RateLimitRPS(),
		RateBurst:  config.RateLimitBurst(),
		Logger:     logger,
	})

	// Start background services
	var scheduler *service.Scheduler
	if interval := config.RunInterval(); interval > 0 {
		scheduler = service.NewScheduler(engine.Runner, interval, logger)
		scheduler.Start()
	}

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("backend", config.StoreBackend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

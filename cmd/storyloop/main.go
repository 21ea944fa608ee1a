package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/api"
	"github.com/MikeSquared-Agency/Storyloop/internal/config"
	"github.com/MikeSquared-Agency/Storyloop/internal/hermes"
	"github.com/MikeSquared-Agency/Storyloop/internal/loop"
	"github.com/MikeSquared-Agency/Storyloop/internal/merch"
	"github.com/MikeSquared-Agency/Storyloop/internal/otel"
	"github.com/MikeSquared-Agency/Storyloop/internal/roster"
	"github.com/MikeSquared-Agency/Storyloop/internal/scorecard"
	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open run store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("run store ready", "driver", cfg.Database.Driver)

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Collaborators are optional; a nil client means the value is unknown.
	var scorecardClient scorecard.Client
	if cfg.Scorecard.URL != "" {
		scorecardClient = scorecard.NewHTTPClient(cfg.Scorecard.URL, cfg.Scorecard.Token)
	}
	var rosterClient roster.Client
	if cfg.Roster.URL != "" {
		rosterClient = roster.NewHTTPClient(cfg.Roster.URL, cfg.Roster.Token)
	}
	var merchClient merch.Client
	if cfg.Merch.URL != "" {
		merchClient = merch.NewHTTPClient(cfg.Merch.URL, cfg.Merch.Token)
	}

	// Tracing
	tp, err := otel.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("failed to init tracing, continuing without spans", "error", err)
		tp = otel.Noop()
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = tp.Shutdown(shutdownCtx)
	}()

	svc, err := loop.New(db, hermesClient, scorecardClient, rosterClient, merchClient, cfg, logger)
	if err != nil {
		logger.Error("failed to build decision loop", "error", err)
		os.Exit(1)
	}
	svc.SetTracer(tp.Tracer)
	svc.SetupSubscriptions(ctx)

	var sweeper *loop.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper, err = loop.NewSweeper(svc, cfg.Sweeper, logger)
		if err != nil {
			logger.Error("failed to build sweeper", "error", err)
			os.Exit(1)
		}
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// API server
	router := api.NewRouter(svc, sweeper, cfg.Server.AdminToken, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.RunStore, error) {
	if cfg.Driver == "sqlite" {
		return store.NewSQLiteStore(ctx, cfg.Path)
	}
	return store.NewPostgresStore(ctx, cfg.URL)
}

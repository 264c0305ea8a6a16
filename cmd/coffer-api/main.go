package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coffer/internal/api"
	"coffer/internal/app"
	"coffer/internal/auth"
	"coffer/internal/config"
	"coffer/internal/metrics"
	"coffer/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "coffer-api"
	}
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ledger, err := app.Build(ctx, logger, app.Options{Storage: cfg.Storage, Cache: cfg.Cache, Events: cfg.Events})
	if err != nil {
		logger.Error("ledger init failed", "err", err)
		os.Exit(1)
	}
	defer ledger.Close()

	metricsServer := metrics.StartServer(cfg.MetricsAddr, ledger.Registry, ledger.Health)

	server := api.New(logger, auth.NewTokenVerifier(cfg.Token), ledger.Service, ledger.Health)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("coffer api listening", "addr", cfg.Addr, "metrics_addr", cfg.MetricsAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

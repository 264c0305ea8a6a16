package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coffer/internal/app"
	"coffer/internal/config"
	"coffer/internal/discord"
	"coffer/internal/metrics"
	"coffer/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "coffer-bot"
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
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	bot, err := discord.New(cfg.Token, cfg.GuildID, discord.NewHandler(ledger.Service, logger), ledger.Service.Jobs(), logger)
	if err != nil {
		logger.Error("discord init failed", "err", err)
		os.Exit(1)
	}
	if err := bot.Open(); err != nil {
		logger.Error("discord connect failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = bot.Close() }()

	logger.Info("coffer bot running", "guild", cfg.GuildID, "metrics_addr", cfg.MetricsAddr)
	<-ctx.Done()
	logger.Info("coffer bot shutdown")
}

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
	"coffer/internal/economy"
	"coffer/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "coffer-worker"
	}
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ledger, err := app.Build(ctx, logger, app.Options{Storage: cfg.Storage, Cache: cfg.Cache})
	if err != nil {
		logger.Error("ledger init failed", "err", err)
		os.Exit(1)
	}
	defer ledger.Close()

	limits := refreshLimits(cfg.Limit)

	if cfg.RunOnce {
		if err := refresh(ctx, ledger.Service, limits); err != nil {
			logger.Error("leaderboard refresh failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.RefreshEvery)
	defer ticker.Stop()

	logger.Info("worker started", "refresh_every", cfg.RefreshEvery.String(), "limits", limits)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := refresh(ctx, ledger.Service, limits); err != nil {
				logger.Error("leaderboard refresh failed", "err", err)
				continue
			}
			logger.Debug("leaderboard refreshed")
		}
	}
}

// refreshLimits always includes the default page size so chat rankings stay warm.
func refreshLimits(configured int) []int {
	limits := []int{economy.DefaultLeaderboardLimit}
	if configured > 0 && configured != economy.DefaultLeaderboardLimit {
		limits = append(limits, configured)
	}
	return limits
}

func refresh(ctx context.Context, svc *economy.Service, limits []int) error {
	for _, limit := range limits {
		if _, err := svc.RefreshLeaderboard(ctx, limit); err != nil {
			return err
		}
	}
	return nil
}

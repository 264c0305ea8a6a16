// Package app assembles the ledger service and its optional backends for the coffer processes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"coffer/internal/config"
	"coffer/internal/economy"
	"coffer/internal/events"
	"coffer/internal/metrics"
	"coffer/internal/rankcache"
	"coffer/internal/storage"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Ledger is a ready service plus everything that must be closed with it.
type Ledger struct {
	Service  *economy.Service
	Registry *prometheus.Registry

	store   *storage.Handle
	redis   *redis.Client
	closers []func()
}

type Options struct {
	Storage config.StorageConfig
	Cache   config.CacheConfig
	Events  config.EventsConfig
}

func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Build opens storage and, when configured, the Redis leaderboard cache and the Kafka publisher.
func Build(ctx context.Context, logger *slog.Logger, opts Options) (*Ledger, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handle, err := storage.Open(ctx, opts.Storage)
	if err != nil {
		return nil, err
	}
	l := &Ledger{Registry: reg, store: handle, closers: []func(){handle.Close}}

	svcOpts := []economy.Option{economy.WithRecorder(metrics.NewRecorder(reg))}

	if opts.Cache.RedisAddr != "" {
		rdb, err := rankcache.Dial(ctx, rankcache.Options{
			Addr:     opts.Cache.RedisAddr,
			Password: opts.Cache.RedisPassword,
			DB:       opts.Cache.RedisDB,
		})
		if err != nil {
			l.Close()
			return nil, err
		}
		l.redis = rdb
		l.closers = append(l.closers, func() { _ = rdb.Close() })
		svcOpts = append(svcOpts, economy.WithLeaderboardCache(rankcache.New(rdb, opts.Cache.KeyPrefix, opts.Cache.TTL)))
		logger.Info("leaderboard cache enabled", "addr", opts.Cache.RedisAddr, "ttl", opts.Cache.TTL.String())
	}

	if len(opts.Events.Brokers) > 0 {
		pub, err := events.NewKafkaPublisher(opts.Events.Brokers, opts.Events.Topic)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		l.closers = append(l.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("kafka publisher close failed", "err", err)
			}
		})
		svcOpts = append(svcOpts, economy.WithPublisher(pub))
		logger.Info("ledger events enabled", "brokers", opts.Events.Brokers, "topic", opts.Events.Topic)
	}

	l.Service = economy.NewService(handle.Store, nil, logger, svcOpts...)
	logger.Info("ledger ready", "store", opts.Storage.Driver)
	return l, nil
}

// Health checks the store and, if present, Redis.
func (l *Ledger) Health(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if l.redis != nil {
		if err := l.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases backends in reverse order of opening.
func (l *Ledger) Close() {
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
	l.closers = nil
}

// Package storage opens the account store selected by configuration.
package storage

import (
	"context"
	"fmt"

	"coffer/internal/config"
	"coffer/internal/economy"
	"coffer/internal/storage/memory"
	"coffer/internal/storage/postgres"
	"coffer/internal/storage/sqlite"
)

// Handle is an opened store plus the hooks a process needs around it.
type Handle struct {
	Store economy.Store
	Ping  func(ctx context.Context) error
	Close func()
}

func Open(ctx context.Context, cfg config.StorageConfig) (*Handle, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return &Handle{
			Store: memory.New(),
			Ping:  func(context.Context) error { return nil },
			Close: func() {},
		}, nil
	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &Handle{
			Store: st,
			Ping:  st.Ping,
			Close: func() { _ = st.Close() },
		}, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		st := postgres.New(pool)
		return &Handle{
			Store: st,
			Ping:  st.Ping,
			Close: pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

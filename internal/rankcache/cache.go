// Package rankcache stores leaderboard snapshots in Redis so every process serves the same
// recent ranking without scanning the account table per request.
package rankcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"coffer/internal/economy"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and checks the connection once.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func New(rdb redis.Cmdable, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "coffer:leaderboard"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(limit int) string {
	return c.prefix + ":" + strconv.Itoa(limit)
}

// Get reports a miss, not an error, when the snapshot expired or was never written.
func (c *Cache) Get(ctx context.Context, limit int) ([]economy.LeaderboardEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get leaderboard snapshot: %w", err)
	}
	var entries []economy.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("decode leaderboard snapshot: %w", err)
	}
	return entries, true, nil
}

func (c *Cache) Put(ctx context.Context, limit int, entries []economy.LeaderboardEntry) error {
	if entries == nil {
		entries = []economy.LeaderboardEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set leaderboard snapshot: %w", err)
	}
	return nil
}

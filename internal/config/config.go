package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type StorageConfig struct {
	Driver      string `env:"COFFER_STORE"        envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"COFFER_SQLITE_PATH"  envDefault:"coffer.db"`
	MaxConns    int32  `env:"COFFER_DB_MAX_CONNS" envDefault:"20"`
}

// CacheConfig is optional: an empty RedisAddr disables the leaderboard cache.
type CacheConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"               envDefault:"0"`
	TTL           time.Duration `env:"COFFER_LEADERBOARD_TTL" envDefault:"30s"`
	KeyPrefix     string        `env:"COFFER_CACHE_PREFIX"    envDefault:"coffer:leaderboard"`
}

type EventsConfig struct {
	Brokers []string `env:"KAFKA_BROKERS"      envSeparator:","`
	Topic   string   `env:"COFFER_EVENTS_TOPIC" envDefault:"coffer.ledger"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME"`
}

type APIConfig struct {
	Addr        string     `env:"COFFER_API_ADDR"     envDefault:":8080"`
	Token       string     `env:"COFFER_API_TOKEN"`
	MetricsAddr string     `env:"COFFER_METRICS_ADDR" envDefault:":9090"`
	LogLevel    slog.Level `env:"COFFER_LOG_LEVEL"    envDefault:"info"`
	Storage     StorageConfig
	Cache       CacheConfig
	Events      EventsConfig
	Telemetry   TelemetryConfig
}

type BotConfig struct {
	Token       string     `env:"DISCORD_TOKEN"`
	GuildID     string     `env:"DISCORD_GUILD_ID"`
	MetricsAddr string     `env:"COFFER_METRICS_ADDR" envDefault:":9091"`
	LogLevel    slog.Level `env:"COFFER_LOG_LEVEL"    envDefault:"info"`
	Storage     StorageConfig
	Cache       CacheConfig
	Events      EventsConfig
	Telemetry   TelemetryConfig
}

type WorkerConfig struct {
	RefreshEvery time.Duration `env:"COFFER_LEADERBOARD_REFRESH_EVERY" envDefault:"1m"`
	RunOnce      bool          `env:"COFFER_WORKER_RUN_ONCE"`
	Limit        int           `env:"COFFER_LEADERBOARD_LIMIT"         envDefault:"100"`
	LogLevel     slog.Level    `env:"COFFER_LOG_LEVEL"                 envDefault:"info"`
	Storage      StorageConfig
	Cache        CacheConfig
	Telemetry    TelemetryConfig
}

type CLIConfig struct {
	APIBaseURL string `env:"COFFER_API_URL"   envDefault:"http://localhost:8080"`
	Token      string `env:"COFFER_API_TOKEN"`
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if port := strings.TrimSpace(lookupPort()); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return cfg, fmt.Errorf("COFFER_API_TOKEN is required")
	}
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadBotFromEnv() (BotConfig, error) {
	var cfg BotConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWorkerFromEnv requires a shared store and a cache; refreshing a private in-memory
// table would be pointless.
func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	if cfg.Storage.Driver == StoreMemory {
		return cfg, fmt.Errorf("worker needs a persistent store, got COFFER_STORE=memory")
	}
	if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
		return cfg, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.RefreshEvery <= 0 {
		return cfg, fmt.Errorf("COFFER_LEADERBOARD_REFRESH_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		cfg = CLIConfig{APIBaseURL: "http://localhost:8080"}
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.Token = strings.TrimSpace(cfg.Token)
	return cfg
}

func (c *StorageConfig) validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("COFFER_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		if c.MaxConns <= 0 {
			return fmt.Errorf("COFFER_DB_MAX_CONNS must be positive")
		}
	default:
		return fmt.Errorf("unknown COFFER_STORE %q", c.Driver)
	}
	return nil
}

// lookupPort honors the PORT variable set by container platforms.
func lookupPort() string {
	var p struct {
		Port string `env:"PORT"`
	}
	_ = env.Parse(&p)
	return p.Port
}

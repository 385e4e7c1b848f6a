// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `env:"SERVER_PORT"            envDefault:"8080"`
	BackofficePort       string        `env:"BACKOFFICE_PORT"        envDefault:"8081"`
	Env                  string        `env:"ENVIRONMENT"            envDefault:"development"` // "development" | "production"
	ReadTimeout          time.Duration `env:"SERVER_READ_TIMEOUT"    envDefault:"10s"`
	WriteTimeout         time.Duration `env:"SERVER_WRITE_TIMEOUT"   envDefault:"10s"`
	BackofficeAllowedIPs []string      `env:"BACKOFFICE_ALLOWED_IPS" envSeparator:","` // empty = allow all
	CORSAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS"   envSeparator:","` // prod only; dev allows all
	BidRateLimit         int           `env:"API_BID_RATE_LIMIT"     envDefault:"20"`  // bids per second per caller
}

// DBConfig holds store settings. Driver "memory" runs without PostgreSQL.
type DBConfig struct {
	Driver          string        `env:"DB_DRIVER"            envDefault:"postgres"`
	DSN             string        `env:"DATABASE_DSN"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// JWTConfig holds token verification settings. Tokens are issued elsewhere.
type JWTConfig struct {
	AccessSecret string `env:"JWT_ACCESS_SECRET"`
	Issuer       string `env:"JWT_ISSUER"`
}

// AuctionConfig tunes the bidding engine and the lifecycle sweeper.
type AuctionConfig struct {
	MaxBidAttempts   int           `env:"AUCTION_MAX_BID_ATTEMPTS"   envDefault:"3"`
	EndingSoonWindow time.Duration `env:"AUCTION_ENDING_SOON_WINDOW" envDefault:"60m"`
	SweepInterval    time.Duration `env:"AUCTION_SWEEP_INTERVAL"     envDefault:"5s"`
	SweepBatchSize   int           `env:"AUCTION_SWEEP_BATCH_SIZE"   envDefault:"500"`
	MaxExtensions    int           `env:"AUCTION_MAX_EXTENSIONS"     envDefault:"0"` // 0 = unlimited
}

// EventsConfig sizes the post-commit event queue.
type EventsConfig struct {
	QueueSize int `env:"EVENTS_QUEUE_SIZE" envDefault:"1024"`
}

// NotifyConfig points at the external notification and messaging services.
// Empty URLs disable the corresponding call.
type NotifyConfig struct {
	OutcomeURL string        `env:"NOTIFY_OUTCOME_URL"`
	ThreadURL  string        `env:"NOTIFY_THREAD_URL"`
	RetryMax   int           `env:"NOTIFY_RETRY_MAX" envDefault:"3"`
	Timeout    time.Duration `env:"NOTIFY_TIMEOUT"   envDefault:"5s"`
}

// WSConfig holds WebSocket settings.
type WSConfig struct {
	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	Auction AuctionConfig
	Events  EventsConfig
	Notify  NotifyConfig
	WS      WSConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// UsesMemoryStore reports whether the in-process store is selected.
func (c *Config) UsesMemoryStore() bool {
	return strings.EqualFold(c.DB.Driver, "memory")
}

// Validate checks that all required configuration values are present and valid.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}

	switch strings.ToLower(c.DB.Driver) {
	case "postgres":
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set when DB_DRIVER=postgres"))
		}
	case "memory":
		if c.IsProd() {
			errs = append(errs, errors.New("DB_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.DB.Driver))
	}

	if c.Auction.MaxBidAttempts < 1 {
		errs = append(errs, fmt.Errorf("AUCTION_MAX_BID_ATTEMPTS must be >= 1, got %d", c.Auction.MaxBidAttempts))
	}
	if c.Auction.EndingSoonWindow <= 0 {
		errs = append(errs, fmt.Errorf("AUCTION_ENDING_SOON_WINDOW must be positive, got %s", c.Auction.EndingSoonWindow))
	}
	if c.Auction.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("AUCTION_SWEEP_INTERVAL must be positive, got %s", c.Auction.SweepInterval))
	}
	if c.Auction.SweepBatchSize < 1 {
		errs = append(errs, fmt.Errorf("AUCTION_SWEEP_BATCH_SIZE must be >= 1, got %d", c.Auction.SweepBatchSize))
	}
	if c.Auction.MaxExtensions < 0 {
		errs = append(errs, fmt.Errorf("AUCTION_MAX_EXTENSIONS must be >= 0, got %d", c.Auction.MaxExtensions))
	}
	if c.Server.BidRateLimit < 1 {
		errs = append(errs, fmt.Errorf("API_BID_RATE_LIMIT must be >= 1, got %d", c.Server.BidRateLimit))
	}
	if c.Events.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("EVENTS_QUEUE_SIZE must be >= 1, got %d", c.Events.QueueSize))
	}
	if c.Notify.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_RETRY_MAX must be >= 0, got %d", c.Notify.RetryMax))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails; call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// Load parses the environment into a fresh Config without caching it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

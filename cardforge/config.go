package cardforge

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cardforge/cardforge/internal/domain/market"
	"github.com/cardforge/cardforge/internal/domain/sweeper"
	"github.com/cardforge/cardforge/internal/domain/trades"
	"github.com/cardforge/cardforge/internal/gateways/database"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig is what an empty config file decodes to.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

type Config struct {
	Log      LogConfig         `toml:"log"`
	DB       database.DBConfig `toml:"db"`
	HTTP     HTTPConfig        `toml:"http"`
	Exchange ExchangeConfig    `toml:"exchange"`
	Sweeper  SweeperConfig     `toml:"sweeper"`
	NATS     NATSConfig        `toml:"nats"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type HTTPConfig struct {
	Address      string   `toml:"address"`
	AllowOrigins []string `toml:"allow_origins"`
	// RateLimit is requests per minute per account, zero disables.
	RateLimit       int `toml:"rate_limit"`
	ShutdownSeconds int `toml:"shutdown_seconds"`
}

type ExchangeConfig struct {
	// Driver selects the store: "postgres" or "memory".
	Driver string `toml:"driver"`
	// SeedFile loads accounts and cards into the memory store on start.
	SeedFile string `toml:"seed_file"`

	ListingHours         int    `toml:"listing_hours"`
	MinListingHours      int    `toml:"min_listing_hours"`
	MaxListingHours      int    `toml:"max_listing_hours"`
	MinBidIncrement      uint64 `toml:"min_bid_increment"`
	TradeLifetimeHours   int    `toml:"trade_lifetime_hours"`
	MaxTradeCardsPerSide int    `toml:"max_trade_cards_per_side"`
}

type SweeperConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
	BatchSize       int  `toml:"batch_size"`
	Concurrency     int  `toml:"concurrency"`
	TimeoutSeconds  int  `toml:"timeout_seconds"`
}

type NATSConfig struct {
	URL    string `toml:"url"`
	Name   string `toml:"name"`
	Stream string `toml:"stream"`
}

func (c *Config) applyDefaults() {
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.DB.Host == "" {
		c.DB.Host = "localhost"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.PoolSize == 0 {
		c.DB.PoolSize = 10
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownSeconds == 0 {
		c.HTTP.ShutdownSeconds = 10
	}
	if c.Exchange.Driver == "" {
		c.Exchange.Driver = DriverPostgres
	}
	if c.NATS.Name == "" {
		c.NATS.Name = "cardforge"
	}
}

func (c *Config) Validate() error {
	switch c.Exchange.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown exchange driver %q", c.Exchange.Driver)
	}
	if c.Exchange.SeedFile != "" && c.Exchange.Driver != DriverMemory {
		return fmt.Errorf("seed_file is only supported by the memory driver")
	}
	if c.Exchange.MinListingHours > 0 && c.Exchange.MaxListingHours > 0 &&
		c.Exchange.MinListingHours > c.Exchange.MaxListingHours {
		return fmt.Errorf("min_listing_hours %d exceeds max_listing_hours %d",
			c.Exchange.MinListingHours, c.Exchange.MaxListingHours)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	return nil
}

func (c ExchangeConfig) MarketSettings() market.Settings {
	return market.Settings{
		DefaultDuration:        hours(c.ListingHours),
		MinDuration:            hours(c.MinListingHours),
		MaxDuration:            hours(c.MaxListingHours),
		DefaultMinBidIncrement: c.MinBidIncrement,
	}
}

func (c ExchangeConfig) TradeSettings() trades.Settings {
	return trades.Settings{
		Lifetime:        hours(c.TradeLifetimeHours),
		MaxCardsPerSide: c.MaxTradeCardsPerSide,
	}
}

func (c SweeperConfig) Settings() sweeper.Config {
	return sweeper.Config{
		Interval:    time.Duration(c.IntervalSeconds) * time.Second,
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
		Timeout:     time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}

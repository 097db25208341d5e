package cardforge

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name:    "defaults",
			content: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.Exchange.Driver)
				assert.Equal(t, ":8080", cfg.HTTP.Address)
				assert.Equal(t, 5432, cfg.DB.Port)
				assert.Equal(t, "text", cfg.Log.Format)
			},
		},
		{
			name: "full",
			content: `
[log]
level = "debug"

[db]
host = "db"
port = 5433
user = "exchange"
database = "cards"

[http]
address = ":9000"
rate_limit = 120

[exchange]
driver = "memory"
listing_hours = 48
min_bid_increment = 25
trade_lifetime_hours = 24

[sweeper]
enabled = true
interval_seconds = 30
concurrency = 8

[nats]
url = "nats://localhost:4222"
stream = "EXCHANGE"
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
				assert.Equal(t, "db", cfg.DB.Host)
				assert.Equal(t, 5433, cfg.DB.Port)
				assert.Equal(t, 120, cfg.HTTP.RateLimit)
				assert.Equal(t, DriverMemory, cfg.Exchange.Driver)
				assert.Equal(t, 48*time.Hour, cfg.Exchange.MarketSettings().DefaultDuration)
				assert.Equal(t, uint64(25), cfg.Exchange.MarketSettings().DefaultMinBidIncrement)
				assert.Equal(t, 24*time.Hour, cfg.Exchange.TradeSettings().Lifetime)
				assert.Equal(t, 30*time.Second, cfg.Sweeper.Settings().Interval)
				assert.Equal(t, 8, cfg.Sweeper.Settings().Concurrency)
				assert.Equal(t, "EXCHANGE", cfg.NATS.Stream)
				assert.Equal(t, "cardforge", cfg.NATS.Name)
			},
		},
		{
			name:    "unknown driver",
			content: "[exchange]\ndriver = \"sqlite\"\n",
			wantErr: "unknown exchange driver",
		},
		{
			name:    "seed without memory",
			content: "[exchange]\nseed_file = \"seed.toml\"\n",
			wantErr: "only supported by the memory driver",
		},
		{
			name:    "inverted listing bounds",
			content: "[exchange]\nmin_listing_hours = 10\nmax_listing_hours = 5\n",
			wantErr: "exceeds",
		},
		{
			name:    "unknown key",
			content: "[exchange]\nfee_percent = 5\n",
			wantErr: "failed to decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeFile(t, "config.toml", tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := writeFile(t, "seed.toml", `
[[accounts]]
id = "alice"
gold = 100

[[accounts]]
id = "bob"
gems = 3

[[definitions]]
id = "def-1"
name = "Ember Drake"
rarity = "Rare"

[[cards]]
id = "c1"
owner = "alice"
definition = "def-1"
foil = true
`)

	f, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, f.Accounts, 2)
	assert.Equal(t, uint64(100), f.Accounts[0].GoldBalance)
	assert.Equal(t, uint64(3), f.Accounts[1].GemBalance)
	require.Len(t, f.Cards, 1)
	assert.True(t, f.Cards[0].IsFoil)

	bad := writeFile(t, "bad.toml", "[[cards]]\nid = \"c1\"\nowner = \"ghost\"\ndefinition = \"def-1\"\n")
	_, err = LoadSeedFile(bad)
	assert.ErrorContains(t, err, "unknown account")
}

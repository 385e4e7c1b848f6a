package config_test

import (
	"testing"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("DATABASE_DSN", "postgres://localhost/auction")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 3, cfg.Auction.MaxBidAttempts)
	assert.Equal(t, 60*time.Minute, cfg.Auction.EndingSoonWindow)
	assert.Equal(t, 5*time.Second, cfg.Auction.SweepInterval)
	assert.Equal(t, 0, cfg.Auction.MaxExtensions)
	assert.Equal(t, 1024, cfg.Events.QueueSize)
	assert.Equal(t, 20, cfg.Server.BidRateLimit)
	assert.False(t, cfg.IsProd())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("AUCTION_MAX_BID_ATTEMPTS", "5")
	t.Setenv("AUCTION_ENDING_SOON_WINDOW", "15m")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("BACKOFFICE_ALLOWED_IPS", "10.0.0.1,10.0.0.2")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, 5, cfg.Auction.MaxBidAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auction.EndingSoonWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WS.AllowedOrigins)
	assert.Len(t, cfg.Server.BackofficeAllowedIPs, 2)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("AUCTION_SWEEP_INTERVAL", "soon")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("AUCTION_MAX_BID_ATTEMPTS", "0")

	cfg, err := config.Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
	assert.Contains(t, err.Error(), "DB_DRIVER")
	assert.Contains(t, err.Error(), "AUCTION_MAX_BID_ATTEMPTS")
}

func TestValidate_MemoryRejectedInProduction(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

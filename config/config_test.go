package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/invest")
	t.Setenv("SERVICE_TOKEN", "secret")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.RankingInterval)
	assert.Equal(t, int64(1), cfg.Trading.LotSize)
	assert.True(t, cfg.Trading.BrokerageRate.Equal(decimal.RequireFromString("0.001425")))
	assert.True(t, cfg.Trading.PriceBandPercent.Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.DefaultInitialBalance.Equal(decimal.NewFromInt(1_000_000)))
	assert.Equal(t, 100, cfg.Eligibility.MinUniqueReaders)
	assert.Equal(t, 90, cfg.Eligibility.ArticleWindowDays)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.R2.Enabled())
}

func TestFromViperOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/invest")
	t.Setenv("SERVICE_TOKEN", "secret")
	t.Setenv("RANKING_INTERVAL", "5s")
	t.Setenv("TRADE_LOT_SIZE", "1000")
	t.Setenv("TRADE_PRICE_BAND", "2.5")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example,")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.RankingInterval)
	assert.Equal(t, int64(1000), cfg.Trading.LotSize)
	assert.True(t, cfg.Trading.PriceBandPercent.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromViperRequiresDatabaseAndToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERVICE_TOKEN", "secret")
	_, err := FromViper(newViper())
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/invest")
	t.Setenv("SERVICE_TOKEN", "")
	_, err = FromViper(newViper())
	require.Error(t, err)
}

func TestFromViperRejectsBadDecimal(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/invest")
	t.Setenv("SERVICE_TOKEN", "secret")
	t.Setenv("SELL_TAX_RATE", "three percent")

	_, err := FromViper(newViper())
	require.ErrorContains(t, err, "SELL_TAX_RATE")
}

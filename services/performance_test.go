package services

import (
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyReturns(t *testing.T) {
	returns := DailyReturns([]decimal.Decimal{d("1000"), d("1010"), d("999.9")})
	require.Len(t, returns, 2)
	assert.True(t, returns[0].Equal(d("1")))
	assert.True(t, returns[1].Equal(d("-1")))

	assert.Nil(t, DailyReturns([]decimal.Decimal{d("1000")}))
	assert.True(t, DailyReturn(decimal.Zero, d("10")).IsZero())
}

func TestMaxDrawdown(t *testing.T) {
	dd := MaxDrawdown([]decimal.Decimal{d("100"), d("120"), d("90"), d("130"), d("117")})
	assert.True(t, dd.Equal(d("25")), dd.String())
	assert.True(t, MaxDrawdown(nil).IsZero())
}

func TestVolatilityAndSharpe(t *testing.T) {
	returns := []decimal.Decimal{d("1"), d("-0.5"), d("0.2"), d("0.8")}

	vol := Volatility(returns)
	assert.InDelta(t, 0.675154, vol.InexactFloat64(), 1e-6)

	sharpe := SharpeRatio(returns)
	require.NotNil(t, sharpe)
	assert.InDelta(t, 8.630549, sharpe.InexactFloat64(), 1e-5)
}

func TestSharpeUndefined(t *testing.T) {
	assert.Nil(t, SharpeRatio(nil))
	assert.Nil(t, SharpeRatio([]decimal.Decimal{d("1")}))
	assert.Nil(t, SharpeRatio([]decimal.Decimal{d("0.5"), d("0.5"), d("0.5")}), "flat series")
}

func TestTimeRangeSince(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC), RangeWeek.Since(now))
	assert.Equal(t, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC), RangeMonth.Since(now))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), RangeQuarter.Since(now))
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), RangeYear.Since(now))
	assert.True(t, RangeAll.Since(now).Before(RangeYear.Since(now)))
}

func TestMeetsThreshold(t *testing.T) {
	stats := &models.InvestorStats{TotalTrades: 12, TournamentsWon: 1}

	assert.True(t, meetsThreshold(stats, map[string]int64{"total_trades": 10}))
	assert.True(t, meetsThreshold(stats, map[string]int64{"total_trades": 12, "tournaments_won": 1}))
	assert.False(t, meetsThreshold(stats, map[string]int64{"total_trades": 100}))
	assert.False(t, meetsThreshold(stats, map[string]int64{"unknown_counter": 0}))
	assert.False(t, meetsThreshold(stats, nil))
}

func TestAchievementCatalogThresholdsAreKnownCounters(t *testing.T) {
	stats := &models.InvestorStats{}
	for _, a := range models.AchievementCatalog {
		require.NotEmpty(t, a.Code)
		for key := range a.Threshold.Data() {
			_, ok := stats.Counter(key)
			assert.True(t, ok, "%s uses unknown counter %s", a.Code, key)
		}
	}
}

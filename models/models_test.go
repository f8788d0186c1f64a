package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSearchKeyFor(t *testing.T) {
	assert.Equal(t, "zoe", SearchKeyFor("Zoë", "  "))
	assert.Equal(t, "zoe zhang wei", SearchKeyFor("Zoë", "張偉"))
	assert.Equal(t, "", SearchKeyFor())
}

func TestUserProfileName(t *testing.T) {
	u := UserProfile{Username: "trader42"}
	assert.Equal(t, "trader42", u.Name())
	u.DisplayName = "Ada"
	assert.Equal(t, "Ada", u.Name())
}

func TestTournamentTradingOpen(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	tm := Tournament{Status: TournamentStatusOngoing, StartDate: start, EndDate: start.AddDate(0, 0, 30)}

	assert.True(t, tm.TradingOpen(start))
	assert.False(t, tm.TradingOpen(start.Add(-time.Second)))
	assert.False(t, tm.TradingOpen(tm.EndDate), "end is exclusive")

	tm.Status = TournamentStatusEnrolling
	assert.False(t, tm.TradingOpen(start.Add(time.Hour)))
}

func TestPortfolioWinRate(t *testing.T) {
	p := TournamentPortfolio{}
	assert.True(t, p.WinRate().IsZero())

	p.TotalTrades, p.SellTrades, p.WinningTrades = 8, 4, 1
	assert.True(t, p.WinRate().Equal(decimal.NewFromInt(25)), "buys are not closed trades")
}

func TestWalletConfigured(t *testing.T) {
	addr := "0xabc"
	empty := ""
	assert.True(t, (&TokenWallet{IsActive: true, Address: &addr}).Configured())
	assert.False(t, (&TokenWallet{IsActive: false, Address: &addr}).Configured())
	assert.False(t, (&TokenWallet{IsActive: true, Address: &empty}).Configured())
	assert.False(t, (&TokenWallet{IsActive: true}).Configured())
}

func TestInvestorStatsCounter(t *testing.T) {
	s := InvestorStats{TotalTrades: 3, TopThreeFinishes: 2}
	v, ok := s.Counter("total_trades")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
	v, _ = s.Counter("top_three_finishes")
	assert.Equal(t, int64(2), v)
	_, ok = s.Counter("best_rank")
	assert.False(t, ok)
}

func TestUserProfileBeforeCreateAssignsID(t *testing.T) {
	u := UserProfile{ExternalUserID: "ext-1"}
	assert.NoError(t, u.BeforeCreate(nil))
	assert.Len(t, u.ID, 36)

	kept := UserProfile{ID: "fixed"}
	assert.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "fixed", kept.ID)
}

package services

import (
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tradeNow = time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC) // Wednesday

func testRules() TradeRules {
	return TradeRules{
		LotSize: 1,
		Fees: FeeSchedule{
			BrokerageRate: d("0.001425"),
			MinBrokerage:  d("20"),
			SellTaxRate:   d("0.003"),
		},
		Location: time.UTC,
	}
}

func ongoingTournament() *models.Tournament {
	return &models.Tournament{
		ID:             "t-1",
		Status:         models.TournamentStatusOngoing,
		StartDate:      tradeNow.AddDate(0, 0, -7),
		EndDate:        tradeNow.AddDate(0, 0, 7),
		InitialBalance: d("1000000"),
	}
}

func freshPortfolio() models.TournamentPortfolio {
	return models.TournamentPortfolio{
		TournamentID:   "t-1",
		UserID:         "u-1",
		CashBalance:    d("1000000"),
		TotalAssets:    d("1000000"),
		InitialBalance: d("1000000"),
	}
}

func TestFees(t *testing.T) {
	f := testRules().Fees

	b, tax := f.Fees(models.TradeActionBuy, d("100000"))
	assert.True(t, b.Equal(d("142.5")))
	assert.True(t, tax.IsZero())

	b, tax = f.Fees(models.TradeActionSell, d("100000"))
	assert.True(t, b.Equal(d("142.5")))
	assert.True(t, tax.Equal(d("300")))

	b, _ = f.Fees(models.TradeActionBuy, d("1000"))
	assert.True(t, b.Equal(d("20")), "minimum brokerage applies")
}

func TestApplyTradeBuy(t *testing.T) {
	out, err := testRules().ApplyTrade(ongoingTournament(), freshPortfolio(), nil,
		Order{Symbol: " 2330 ", Name: "TSMC", Action: models.TradeActionBuy, Quantity: 10, Price: d("500")},
		PriceMap{}, tradeNow)
	require.NoError(t, err)

	assert.True(t, out.Portfolio.CashBalance.Equal(d("994980")))
	assert.True(t, out.Portfolio.EquityValue.Equal(d("5000")))
	assert.True(t, out.Portfolio.TotalAssets.Equal(d("999980")))
	assert.True(t, out.Portfolio.ReturnPercentage.Equal(d("-0.002")))
	assert.Equal(t, 1, out.Portfolio.TotalTrades)

	require.NotNil(t, out.Holding)
	assert.Equal(t, "2330", out.Holding.Symbol)
	assert.Equal(t, int64(10), out.Holding.Shares)
	assert.True(t, out.Holding.AveragePrice.Equal(d("500")))
	assert.True(t, out.Trade.Fees.Equal(d("20")))
	assert.True(t, out.Trade.NetAmount.Equal(d("-5020")))
	assert.Equal(t, models.TradeStatusExecuted, out.Trade.Status)
}

func TestApplyTradeAveragesCost(t *testing.T) {
	holdings := []models.TournamentHolding{{Symbol: "2330", Shares: 10, AveragePrice: d("500")}}
	p := freshPortfolio()
	p.CashBalance = d("995000")

	out, err := testRules().ApplyTrade(ongoingTournament(), p, holdings,
		Order{Symbol: "2330", Action: models.TradeActionBuy, Quantity: 10, Price: d("600")},
		PriceMap{}, tradeNow)
	require.NoError(t, err)
	assert.Equal(t, int64(20), out.Holding.Shares)
	assert.True(t, out.Holding.AveragePrice.Equal(d("550")))
	assert.Equal(t, int64(10), holdings[0].Shares, "input holdings are not modified")
}

func TestApplyTradeSellClosesPosition(t *testing.T) {
	holdings := []models.TournamentHolding{{Symbol: "2330", Shares: 10, AveragePrice: d("500")}}
	p := freshPortfolio()
	p.CashBalance = d("995000")

	out, err := testRules().ApplyTrade(ongoingTournament(), p, holdings,
		Order{Symbol: "2330", Action: models.TradeActionSell, Quantity: 10, Price: d("600")},
		PriceMap{"2330": d("600")}, tradeNow)
	require.NoError(t, err)

	assert.True(t, out.HoldingRemoved)
	assert.Empty(t, out.Holdings)
	assert.True(t, out.Trade.Fees.Equal(d("38")))
	assert.True(t, out.Trade.NetAmount.Equal(d("5962")))
	require.NotNil(t, out.Trade.RealizedPnL)
	assert.True(t, out.Trade.RealizedPnL.Equal(d("962")))
	assert.True(t, out.Portfolio.CashBalance.Equal(d("1000962")))
	assert.True(t, out.Portfolio.TotalAssets.Equal(d("1000962")))
	assert.Equal(t, 1, out.Portfolio.WinningTrades)
}

func TestApplyTradeOversellLeavesStateUntouched(t *testing.T) {
	holdings := []models.TournamentHolding{{Symbol: "2330", Shares: 10, AveragePrice: d("500")}}
	p := freshPortfolio()
	p.CashBalance = d("995000")
	before := p

	out, err := testRules().ApplyTrade(ongoingTournament(), p, holdings,
		Order{Symbol: "2330", Action: models.TradeActionSell, Quantity: 15, Price: d("600")},
		PriceMap{}, tradeNow)

	require.ErrorIs(t, err, ErrInsufficientShares)
	assert.Nil(t, out)
	assert.Equal(t, int64(10), holdings[0].Shares)
	assert.True(t, p.CashBalance.Equal(before.CashBalance))
	assert.Equal(t, 0, p.TotalTrades)
}

func TestApplyTradeRejections(t *testing.T) {
	buy := func(qty int64, price string) Order {
		return Order{Symbol: "2330", Action: models.TradeActionBuy, Quantity: qty, Price: d(price)}
	}

	tests := []struct {
		name   string
		mutate func(*TradeRules, *models.Tournament)
		order  Order
		want   error
	}{
		{name: "zero quantity", order: buy(0, "500"), want: ErrInvalidQuantity},
		{name: "zero price", order: buy(1, "0"), want: ErrInvalidPrice},
		{name: "insufficient funds", order: buy(3000, "500"), want: ErrInsufficientFunds},
		{
			name:  "sell without position",
			order: Order{Symbol: "2317", Action: models.TradeActionSell, Quantity: 1, Price: d("100")},
			want:  ErrNoPosition,
		},
		{
			name:   "tournament ended",
			mutate: func(_ *TradeRules, tm *models.Tournament) { tm.Status = models.TournamentStatusEnded },
			order:  buy(1, "500"),
			want:   ErrTradingClosed,
		},
		{
			name:   "past end date",
			mutate: func(_ *TradeRules, tm *models.Tournament) { tm.EndDate = tradeNow },
			order:  buy(1, "500"),
			want:   ErrTradingClosed,
		},
		{
			name:   "symbol not allowed",
			mutate: func(_ *TradeRules, tm *models.Tournament) { tm.AllowedSymbols = []string{"2317"} },
			order:  buy(1, "500"),
			want:   ErrInstrumentNotAllowed,
		},
		{
			name:   "odd lot",
			mutate: func(r *TradeRules, _ *models.Tournament) { r.LotSize = 1000 },
			order:  buy(500, "500"),
			want:   ErrInvalidQuantity,
		},
		{
			name:   "allocation limit",
			mutate: func(_ *TradeRules, tm *models.Tournament) { tm.MaxSingleStockRate = d("20") },
			order:  buy(500, "500"),
			want:   ErrAllocationExceeded,
		},
		{
			name: "outside trading hours",
			mutate: func(r *TradeRules, _ *models.Tournament) {
				r.EnforceHours, r.OpenHour, r.CloseHour = true, 9, 14
			},
			order: buy(1, "500"),
			want:  ErrOutsideTradingHours,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rules := testRules()
			tm := ongoingTournament()
			if tc.mutate != nil {
				tc.mutate(&rules, tm)
			}
			_, err := rules.ApplyTrade(tm, freshPortfolio(), nil, tc.order, PriceMap{}, tradeNow)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestApplyTradeWithinTradingHours(t *testing.T) {
	rules := testRules()
	rules.EnforceHours, rules.OpenHour, rules.CloseHour = true, 1, 6

	_, err := rules.ApplyTrade(ongoingTournament(), freshPortfolio(), nil,
		Order{Symbol: "2330", Action: models.TradeActionBuy, Quantity: 1, Price: d("500")},
		PriceMap{}, tradeNow)
	require.NoError(t, err)

	saturday := time.Date(2026, 3, 7, 2, 0, 0, 0, time.UTC)
	_, err = rules.ApplyTrade(ongoingTournament(), freshPortfolio(), nil,
		Order{Symbol: "2330", Action: models.TradeActionBuy, Quantity: 1, Price: d("500")},
		PriceMap{}, saturday)
	require.ErrorIs(t, err, ErrOutsideTradingHours)
}

func TestWinRateCountsClosedTradesOnly(t *testing.T) {
	rules := testRules()
	tm := ongoingTournament()

	bought, err := rules.ApplyTrade(tm, freshPortfolio(), nil,
		Order{Symbol: "2330", Action: models.TradeActionBuy, Quantity: 100, Price: d("500")},
		PriceMap{}, tradeNow)
	require.NoError(t, err)
	assert.True(t, bought.Portfolio.WinRate().IsZero(), "no closed trade yet")

	sold, err := rules.ApplyTrade(tm, bought.Portfolio, bought.Holdings,
		Order{Symbol: "2330", Action: models.TradeActionSell, Quantity: 100, Price: d("600")},
		PriceMap{"2330": d("600")}, tradeNow)
	require.NoError(t, err)

	p := sold.Portfolio
	assert.Equal(t, 2, p.TotalTrades)
	assert.Equal(t, 1, p.SellTrades)
	assert.Equal(t, 1, p.WinningTrades)
	assert.True(t, p.WinRate().Equal(d("100")))

	rankings, _ := ComputeRankings(tm.ID, []RankingInput{{UserID: p.UserID, Portfolio: &p, JoinedAt: tradeNow}}, nil, tradeNow)
	require.Len(t, rankings, 1)
	assert.True(t, rankings[0].WinRate.Equal(d("100")))
}

func TestExecutionPrice(t *testing.T) {
	rules := testRules()
	rules.PriceBand = d("5")

	p, err := rules.ExecutionPrice("2330", d("0"), d("600"), true)
	require.NoError(t, err)
	assert.True(t, p.Equal(d("600")), "no client price fills at the quote")

	p, err = rules.ExecutionPrice("2330", d("620"), d("600"), true)
	require.NoError(t, err)
	assert.True(t, p.Equal(d("600")), "an in-band client price still fills at the quote")

	_, err = rules.ExecutionPrice("2330", d("1"), d("600"), true)
	require.ErrorIs(t, err, ErrPriceOutOfBand)

	_, err = rules.ExecutionPrice("2330", d("640"), d("600"), true)
	require.ErrorIs(t, err, ErrPriceOutOfBand)

	_, err = rules.ExecutionPrice("2330", d("-5"), d("600"), true)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = rules.ExecutionPrice("2330", d("600"), d("0"), false)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

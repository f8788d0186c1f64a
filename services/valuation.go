package services

import (
	"time"

	"invest-tournament-system/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceMap is a point-in-time price per symbol. A missing symbol means no live quote.
type PriceMap map[string]decimal.Decimal

// HoldingValuation is the mark-to-market view of a single holding.
type HoldingValuation struct {
	Symbol        string          `json:"symbol"`
	Shares        int64           `json:"shares"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Stale         bool            `json:"stale"`
}

// Valuation is the result of marking a portfolio to market.
type Valuation struct {
	CashBalance      decimal.Decimal    `json:"cash_balance"`
	EquityValue      decimal.Decimal    `json:"equity_value"`
	TotalAssets      decimal.Decimal    `json:"total_assets"`
	InitialBalance   decimal.Decimal    `json:"initial_balance"`
	TotalReturn      decimal.Decimal    `json:"total_return"`
	ReturnPercentage decimal.Decimal    `json:"return_percentage"`
	Holdings         []HoldingValuation `json:"holdings"`
	Stale            bool               `json:"stale"`
}

// ValuePortfolio marks cash plus holdings to market. It never alters the cash balance.
// A holding without a live price falls back to its last stored price, then to its
// average cost, and is flagged stale.
func ValuePortfolio(cash, initial decimal.Decimal, holdings []models.TournamentHolding, prices PriceMap) Valuation {
	v := Valuation{
		CashBalance:    cash,
		InitialBalance: initial,
		EquityValue:    decimal.Zero,
		Holdings:       make([]HoldingValuation, 0, len(holdings)),
	}

	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		stale := !ok
		if stale {
			price = h.CurrentPrice
			if !price.IsPositive() {
				price = h.AveragePrice
			}
		}
		shares := decimal.NewFromInt(h.Shares)
		marketValue := shares.Mul(price)
		v.EquityValue = v.EquityValue.Add(marketValue)
		v.Stale = v.Stale || stale
		v.Holdings = append(v.Holdings, HoldingValuation{
			Symbol:        h.Symbol,
			Shares:        h.Shares,
			AveragePrice:  h.AveragePrice,
			CurrentPrice:  price,
			MarketValue:   marketValue,
			UnrealizedPnL: shares.Mul(price.Sub(h.AveragePrice)),
			Stale:         stale,
		})
	}

	v.TotalAssets = v.CashBalance.Add(v.EquityValue)
	v.TotalReturn = v.TotalAssets.Sub(v.InitialBalance)
	v.ReturnPercentage = ReturnPercentage(v.TotalReturn, v.InitialBalance)
	return v
}

// ReturnPercentage is totalReturn / initial × 100, rounded to six places. Zero initial yields zero.
func ReturnPercentage(totalReturn, initial decimal.Decimal) decimal.Decimal {
	if initial.IsZero() {
		return decimal.Zero
	}
	return totalReturn.Div(initial).Mul(hundred).Round(6)
}

// Apply copies the valuation onto a portfolio and its holdings and tracks peak and drawdown.
func (v Valuation) Apply(p *models.TournamentPortfolio, holdings []models.TournamentHolding, now time.Time) {
	p.CashBalance = v.CashBalance
	p.EquityValue = v.EquityValue
	p.TotalAssets = v.TotalAssets
	p.TotalReturn = v.TotalReturn
	p.ReturnPercentage = v.ReturnPercentage
	p.Stale = v.Stale
	p.LastUpdated = now

	if v.TotalAssets.GreaterThan(p.PeakAssets) {
		p.PeakAssets = v.TotalAssets
	}
	if p.PeakAssets.IsPositive() {
		drawdown := p.PeakAssets.Sub(v.TotalAssets).Div(p.PeakAssets).Mul(hundred).Round(6)
		if drawdown.GreaterThan(p.MaxDrawdown) {
			p.MaxDrawdown = drawdown
		}
	}

	bySymbol := make(map[string]HoldingValuation, len(v.Holdings))
	for _, hv := range v.Holdings {
		bySymbol[hv.Symbol] = hv
	}
	for i := range holdings {
		hv, ok := bySymbol[holdings[i].Symbol]
		if !ok {
			continue
		}
		holdings[i].CurrentPrice = hv.CurrentPrice
		holdings[i].MarketValue = hv.MarketValue
		holdings[i].UnrealizedPnL = hv.UnrealizedPnL
		holdings[i].Stale = hv.Stale
		if !hv.Stale {
			holdings[i].LastUpdated = now
		}
	}
}

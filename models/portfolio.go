package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TournamentPortfolio is the persisted valuation of one participant in one tournament.
// TotalAssets always equals CashBalance + EquityValue.
type TournamentPortfolio struct {
	ID               string           `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID     string           `json:"tournament_id" gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_member"`
	UserID           string           `json:"user_id" gorm:"not null;uniqueIndex:idx_portfolio_member"`
	UserName         string           `json:"user_name"`
	CashBalance      decimal.Decimal  `json:"cash_balance" gorm:"type:numeric(20,4);not null"`
	EquityValue      decimal.Decimal  `json:"equity_value" gorm:"type:numeric(20,4);not null;default:0"`
	TotalAssets      decimal.Decimal  `json:"total_assets" gorm:"type:numeric(20,4);not null"`
	InitialBalance   decimal.Decimal  `json:"initial_balance" gorm:"type:numeric(20,4);not null"`
	TotalReturn      decimal.Decimal  `json:"total_return" gorm:"type:numeric(20,4);not null;default:0"`
	ReturnPercentage decimal.Decimal  `json:"return_percentage" gorm:"type:numeric(12,6);not null;default:0"`
	RealizedPnL      decimal.Decimal  `json:"realized_pnl" gorm:"type:numeric(20,4);not null;default:0"`
	TotalTrades      int              `json:"total_trades" gorm:"default:0"`
	SellTrades       int              `json:"sell_trades" gorm:"default:0"`
	WinningTrades    int              `json:"winning_trades" gorm:"default:0"`
	MaxDrawdown      decimal.Decimal  `json:"max_drawdown" gorm:"type:numeric(12,6);default:0"`
	PeakAssets       decimal.Decimal  `json:"-" gorm:"type:numeric(20,4);default:0"`
	DailyReturn      decimal.Decimal  `json:"daily_return" gorm:"type:numeric(12,6);default:0"`
	SharpeRatio      *decimal.Decimal `json:"sharpe_ratio,omitempty" gorm:"type:numeric(12,6)"`
	Stale            bool             `json:"stale" gorm:"-"`
	LastUpdated      time.Time        `json:"last_updated"`

	Holdings []TournamentHolding `json:"holdings,omitempty" gorm:"-"`
}

// WinRate is the share of closed trades (sells) that realized a gain, in percent.
func (p *TournamentPortfolio) WinRate() decimal.Decimal {
	if p.SellTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.WinningTrades)).
		Div(decimal.NewFromInt(int64(p.SellTrades))).
		Mul(decimal.NewFromInt(100))
}

// TournamentHolding is one position owned by exactly one (tournament, user) pair.
type TournamentHolding struct {
	ID                string          `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID      string          `json:"tournament_id" gorm:"type:uuid;not null;uniqueIndex:idx_holding_position"`
	UserID            string          `json:"user_id" gorm:"not null;uniqueIndex:idx_holding_position"`
	Symbol            string          `json:"symbol" gorm:"type:varchar(16);not null;uniqueIndex:idx_holding_position"`
	Name              string          `json:"name"`
	Shares            int64           `json:"shares" gorm:"not null;check:shares >= 0"`
	AveragePrice      decimal.Decimal `json:"average_price" gorm:"type:numeric(20,4);not null"`
	CurrentPrice      decimal.Decimal `json:"current_price" gorm:"type:numeric(20,4);not null"`
	MarketValue       decimal.Decimal `json:"market_value" gorm:"-"`
	UnrealizedPnL     decimal.Decimal `json:"unrealized_pnl" gorm:"-"`
	Stale             bool            `json:"stale" gorm:"-"`
	FirstPurchaseDate time.Time       `json:"first_purchase_date"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// PortfolioSnapshot is the end-of-day record used for history, drawdown and Sharpe ratio.
type PortfolioSnapshot struct {
	ID               string          `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID     string          `json:"tournament_id" gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_day"`
	UserID           string          `json:"user_id" gorm:"not null;uniqueIndex:idx_snapshot_day;index"`
	SnapshotDate     time.Time       `json:"snapshot_date" gorm:"type:date;not null;uniqueIndex:idx_snapshot_day"`
	TotalAssets      decimal.Decimal `json:"total_assets" gorm:"type:numeric(20,4);not null"`
	CashBalance      decimal.Decimal `json:"cash_balance" gorm:"type:numeric(20,4);not null"`
	EquityValue      decimal.Decimal `json:"equity_value" gorm:"type:numeric(20,4);not null"`
	ReturnPercentage decimal.Decimal `json:"return_percentage" gorm:"type:numeric(12,6);not null"`
	DailyReturn      decimal.Decimal `json:"daily_return" gorm:"type:numeric(12,6);not null"`
	Rank             int             `json:"rank"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

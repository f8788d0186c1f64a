package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

type TradeStatus string

const (
	TradeStatusExecuted TradeStatus = "executed"
	TradeStatusRejected TradeStatus = "rejected"
)

// TournamentTrade is an immutable record of an executed simulated order.
type TournamentTrade struct {
	ID           string           `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID string           `json:"tournament_id" gorm:"type:uuid;not null;index:idx_trade_member"`
	UserID       string           `json:"user_id" gorm:"not null;index:idx_trade_member"`
	Symbol       string           `json:"symbol" gorm:"type:varchar(16);not null"`
	StockName    string           `json:"stock_name"`
	Action       TradeAction      `json:"action" gorm:"type:varchar(8);not null"`
	Quantity     int64            `json:"quantity" gorm:"not null"`
	Price        decimal.Decimal  `json:"price" gorm:"type:numeric(20,4);not null"`
	Amount       decimal.Decimal  `json:"amount" gorm:"type:numeric(20,4);not null"`
	Fees         decimal.Decimal  `json:"fees" gorm:"type:numeric(20,4);not null;default:0"`
	NetAmount    decimal.Decimal  `json:"net_amount" gorm:"type:numeric(20,4);not null"`
	RealizedPnL  *decimal.Decimal `json:"realized_pnl,omitempty" gorm:"type:numeric(20,4)"`
	Status       TradeStatus      `json:"status" gorm:"type:varchar(16);default:'executed'"`
	ExecutedAt   time.Time        `json:"executed_at" gorm:"not null;index"`
}

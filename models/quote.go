package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockQuote mirrors the latest price published by the market data service.
type StockQuote struct {
	Symbol        string          `json:"symbol" gorm:"primaryKey;type:varchar(16)"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(20,4);not null"`
	Change        decimal.Decimal `json:"change" gorm:"type:numeric(20,4);default:0"`
	ChangePercent decimal.Decimal `json:"change_percent" gorm:"type:numeric(12,6);default:0"`
	QuotedAt      time.Time       `json:"quoted_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RankChange string

const (
	RankChangeImprovement RankChange = "improvement"
	RankChangeDecline     RankChange = "decline"
	RankChangeStable      RankChange = "stable"
	RankChangeNewEntry    RankChange = "new_entry"
)

// TournamentRanking is one row of the current live ranking. Rows for a tournament are
// overwritten on every recompute.
type TournamentRanking struct {
	TournamentID       string          `json:"tournament_id" gorm:"primaryKey;type:uuid"`
	UserID             string          `json:"user_id" gorm:"primaryKey"`
	UserName           string          `json:"user_name"`
	Rank               int             `json:"rank" gorm:"not null"`
	PreviousRank       int             `json:"previous_rank"`
	RankDelta          int             `json:"rank_change"`
	ChangeType         RankChange      `json:"change_type" gorm:"type:varchar(16)"`
	TotalReturnPercent decimal.Decimal `json:"total_return_percent" gorm:"type:numeric(12,6);not null"`
	TotalReturn        decimal.Decimal `json:"total_return" gorm:"type:numeric(20,4);not null"`
	TotalAssets        decimal.Decimal `json:"total_assets" gorm:"type:numeric(20,4);not null"`
	TotalTrades        int             `json:"total_trades"`
	WinRate            decimal.Decimal `json:"win_rate" gorm:"type:numeric(8,4)"`
	Stale              bool            `json:"stale"`
	ComputedAt         time.Time       `json:"computed_at"`
}

// TournamentResult is the immutable per-participant outcome written once at settlement.
type TournamentResult struct {
	ID                string           `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID      string           `json:"tournament_id" gorm:"type:uuid;not null;uniqueIndex:idx_result_member;uniqueIndex:idx_result_rank"`
	UserID            string           `json:"user_id" gorm:"not null;uniqueIndex:idx_result_member;index"`
	UserName          string           `json:"user_name"`
	Rank              int              `json:"rank" gorm:"not null;uniqueIndex:idx_result_rank"`
	ReturnPercentage  decimal.Decimal  `json:"return_percentage" gorm:"type:numeric(12,6);not null"`
	FinalAssets       decimal.Decimal  `json:"final_assets" gorm:"type:numeric(20,4);not null"`
	TotalTrades       int              `json:"total_trades"`
	WinRate           decimal.Decimal  `json:"win_rate" gorm:"type:numeric(8,4)"`
	RewardAmount      *decimal.Decimal `json:"reward_amount,omitempty" gorm:"type:numeric(20,4)"`
	RewardType        string           `json:"reward_type,omitempty" gorm:"type:varchar(16)"`
	RewardDescription string           `json:"reward_description,omitempty"`
	CreatedAt         time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

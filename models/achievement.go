package models

import (
	"time"

	"gorm.io/datatypes"
)

// AchievementType is static config, seeded at boot from AchievementCatalog.
type AchievementType struct {
	Code        string                               `gorm:"primaryKey;type:varchar(32)" json:"code"`
	Name        string                               `gorm:"not null" json:"name"`
	Description string                               `json:"description"`
	Rarity      string                               `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	Threshold   datatypes.JSONType[map[string]int64] `json:"threshold"`
	CreatedAt   time.Time                            `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement is an awarded instance.
type UserAchievement struct {
	UserID       string    `gorm:"primaryKey" json:"user_id"`
	Code         string    `gorm:"primaryKey;type:varchar(32)" json:"code"`
	TournamentID *string   `gorm:"type:uuid" json:"tournament_id,omitempty"`
	AwardedAt    time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

var AchievementCatalog = []AchievementType{
	{
		Code:        "FIRST_TRADE",
		Name:        "First Order",
		Description: "Executed your first tournament trade",
		Rarity:      "common",
		Threshold:   datatypes.NewJSONType(map[string]int64{"total_trades": 1}),
	},
	{
		Code:        "ACTIVE_TRADER",
		Name:        "Active Trader",
		Description: "Executed 100 tournament trades",
		Rarity:      "rare",
		Threshold:   datatypes.NewJSONType(map[string]int64{"total_trades": 100}),
	},
	{
		Code:        "FIRST_TOURNAMENT",
		Name:        "Contender",
		Description: "Finished your first tournament",
		Rarity:      "common",
		Threshold:   datatypes.NewJSONType(map[string]int64{"tournaments_finished": 1}),
	},
	{
		Code:        "TOP_THREE",
		Name:        "Podium",
		Description: "Finished a tournament in the top three",
		Rarity:      "rare",
		Threshold:   datatypes.NewJSONType(map[string]int64{"top_three_finishes": 1}),
	},
	{
		Code:        "CHAMPION",
		Name:        "Tournament Champion",
		Description: "Won a tournament",
		Rarity:      "epic",
		Threshold:   datatypes.NewJSONType(map[string]int64{"tournaments_won": 1}),
	},
}

// InvestorStats are per-user counters maintained on trade and settlement.
type InvestorStats struct {
	UserID              string     `gorm:"primaryKey" json:"user_id"`
	TotalTrades         int64      `gorm:"not null;default:0" json:"total_trades"`
	TournamentsJoined   int64      `gorm:"not null;default:0" json:"tournaments_joined"`
	TournamentsFinished int64      `gorm:"not null;default:0" json:"tournaments_finished"`
	TopThreeFinishes    int64      `gorm:"not null;default:0" json:"top_three_finishes"`
	TournamentsWon      int64      `gorm:"not null;default:0" json:"tournaments_won"`
	BestRank            int        `gorm:"not null;default:0" json:"best_rank"`
	LastTradeAt         *time.Time `json:"last_trade_at,omitempty"`
	Timestamps
}

// Counter returns the named counter used by achievement thresholds.
func (s *InvestorStats) Counter(name string) (int64, bool) {
	switch name {
	case "total_trades":
		return s.TotalTrades, true
	case "tournaments_joined":
		return s.TournamentsJoined, true
	case "tournaments_finished":
		return s.TournamentsFinished, true
	case "top_three_finishes":
		return s.TopThreeFinishes, true
	case "tournaments_won":
		return s.TournamentsWon, true
	}
	return 0, false
}

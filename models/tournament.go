package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TournamentStatus string

const (
	TournamentStatusUpcoming  TournamentStatus = "upcoming"
	TournamentStatusEnrolling TournamentStatus = "enrolling"
	TournamentStatusOngoing   TournamentStatus = "ongoing"
	TournamentStatusEnded     TournamentStatus = "ended"
	TournamentStatusSettling  TournamentStatus = "settling"
	TournamentStatusSettled   TournamentStatus = "settled"
	TournamentStatusCancelled TournamentStatus = "cancelled"
)

// NormalizeStatus folds the client's legacy aliases (active, finished) into canonical states.
func NormalizeStatus(s string) TournamentStatus {
	switch s {
	case "active":
		return TournamentStatusOngoing
	case "finished":
		return TournamentStatusEnded
	}
	return TournamentStatus(s)
}

type TournamentType string

const (
	TournamentTypeDaily     TournamentType = "daily"
	TournamentTypeWeekly    TournamentType = "weekly"
	TournamentTypeMonthly   TournamentType = "monthly"
	TournamentTypeQuarterly TournamentType = "quarterly"
	TournamentTypeYearly    TournamentType = "yearly"
	TournamentTypeSpecial   TournamentType = "special"
)

// Tournament is a time-boxed trading competition with a fixed starting balance.
type Tournament struct {
	ID                  string                      `json:"id" gorm:"primaryKey;type:uuid"`
	Name                string                      `json:"name" gorm:"not null"`
	Slug                string                      `json:"slug" gorm:"index"`
	Type                TournamentType              `json:"type" gorm:"type:varchar(16);default:'special'"`
	Description         string                      `json:"description"`
	ShortDescription    string                      `json:"short_description"`
	Status              TournamentStatus            `json:"status" gorm:"type:varchar(16);index;default:'upcoming'"`
	StartDate           time.Time                   `json:"start_date" gorm:"not null"`
	EndDate             time.Time                   `json:"end_date" gorm:"not null;index"`
	InitialBalance      decimal.Decimal             `json:"initial_balance" gorm:"type:numeric(20,4);not null"`
	MaxParticipants     int                         `json:"max_participants" gorm:"default:0"`
	CurrentParticipants int                         `json:"current_participants" gorm:"default:0"`
	EntryFee            decimal.Decimal             `json:"entry_fee" gorm:"type:numeric(20,4);default:0"`
	PrizePool           decimal.Decimal             `json:"prize_pool" gorm:"type:numeric(20,4);default:0"`
	RiskLimitPercentage decimal.Decimal             `json:"risk_limit_percentage" gorm:"type:numeric(8,4);default:0"`
	MinHoldingRate      decimal.Decimal             `json:"min_holding_rate" gorm:"type:numeric(8,4);default:0"`
	MaxSingleStockRate  decimal.Decimal             `json:"max_single_stock_rate" gorm:"type:numeric(8,4);default:0"`
	AllowedSymbols      datatypes.JSONSlice[string] `json:"allowed_symbols,omitempty"`
	Rules               datatypes.JSONSlice[string] `json:"rules"`
	PayoutTable         datatypes.JSON              `json:"payout_table,omitempty"`
	IsFeatured          bool                        `json:"is_featured" gorm:"default:false;index"`
	CreatedBy           string                      `json:"created_by" gorm:"index"`
	FrozenAt            *time.Time                  `json:"frozen_at,omitempty"`
	SettledAt           *time.Time                  `json:"settled_at,omitempty"`
	ReportURL           string                      `json:"report_url,omitempty"`
	CreatedAt           time.Time                   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time                   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TradingOpen reports whether orders may be placed at t.
func (t *Tournament) TradingOpen(now time.Time) bool {
	return t.Status == TournamentStatusOngoing && !now.Before(t.StartDate) && now.Before(t.EndDate)
}

type ParticipantStatus string

const (
	ParticipantStatusActive       ParticipantStatus = "active"
	ParticipantStatusEliminated   ParticipantStatus = "eliminated"
	ParticipantStatusDisqualified ParticipantStatus = "disqualified"
)

// TournamentParticipant records a user joining a tournament.
type TournamentParticipant struct {
	ID           string            `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID string            `json:"tournament_id" gorm:"type:uuid;not null;uniqueIndex:idx_participant_member"`
	UserID       string            `json:"user_id" gorm:"not null;uniqueIndex:idx_participant_member"`
	UserName     string            `json:"user_name"`
	AvatarURL    *string           `json:"avatar_url,omitempty"`
	Status       ParticipantStatus `json:"status" gorm:"type:varchar(16);default:'active'"`
	EntryFeePaid decimal.Decimal   `json:"entry_fee_paid" gorm:"type:numeric(20,4);default:0"`
	JoinedAt     time.Time         `json:"joined_at" gorm:"not null"`
}

type ActivityType string

const (
	ActivityJoined       ActivityType = "joined"
	ActivityTrade        ActivityType = "trade"
	ActivityRankChange   ActivityType = "rank_change"
	ActivityStatusChange ActivityType = "status_change"
	ActivitySettled      ActivityType = "settled"
	ActivityAchievement  ActivityType = "achievement"
)

// TournamentActivity is an append-only feed entry shown to participants and friends.
type TournamentActivity struct {
	ID           string            `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID string            `json:"tournament_id" gorm:"type:uuid;not null;index"`
	UserID       string            `json:"user_id" gorm:"index"`
	UserName     string            `json:"user_name"`
	Type         ActivityType      `json:"activity_type" gorm:"type:varchar(24);not null"`
	Description  string            `json:"description"`
	Amount       *decimal.Decimal  `json:"amount,omitempty" gorm:"type:numeric(20,4)"`
	Symbol       string            `json:"symbol,omitempty"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
}

package services

import (
	"encoding/json"
	"strings"

	"invest-tournament-system/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/datatypes"
)

const RewardTypeTokens = "tokens"

// PayoutTier pays every rank in [FromRank, ToRank], or every rank inside the top
// TopPercent of the field when TopPercent is set. Each paid rank receives
// FixedAmount + PoolShare × prize pool.
type PayoutTier struct {
	Group       string          `json:"group,omitempty"`
	FromRank    int             `json:"from_rank,omitempty"`
	ToRank      int             `json:"to_rank,omitempty"`
	TopPercent  decimal.Decimal `json:"top_percent,omitempty"`
	PoolShare   decimal.Decimal `json:"pool_share,omitempty"`
	FixedAmount decimal.Decimal `json:"fixed_amount,omitempty"`
	RewardType  string          `json:"reward_type,omitempty"`
	Label       string          `json:"label,omitempty"`
}

// PayoutTable is evaluated group by group: inside a group the first matching tier
// wins, and amounts from different groups add up.
type PayoutTable struct {
	Tiers []PayoutTier `json:"tiers"`
}

// DefaultPayoutTable splits the prize pool 50/30/20 across the podium and adds the
// token bonus for the top 10% and top 25% of the field.
func DefaultPayoutTable() PayoutTable {
	return PayoutTable{Tiers: []PayoutTier{
		{Group: "prize", FromRank: 1, ToRank: 1, PoolShare: decimal.RequireFromString("0.5"), Label: "Champion"},
		{Group: "prize", FromRank: 2, ToRank: 2, PoolShare: decimal.RequireFromString("0.3"), Label: "Runner-up"},
		{Group: "prize", FromRank: 3, ToRank: 3, PoolShare: decimal.RequireFromString("0.2"), Label: "Third place"},
		{Group: "bonus", TopPercent: decimal.NewFromInt(10), FixedAmount: decimal.NewFromInt(1000), Label: "Top 10%"},
		{Group: "bonus", TopPercent: decimal.NewFromInt(25), FixedAmount: decimal.NewFromInt(500), Label: "Top 25%"},
	}}
}

// ParsePayoutTable decodes a tournament's payout JSON, falling back to the default table.
func ParsePayoutTable(raw datatypes.JSON) (PayoutTable, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == "{}" {
		return DefaultPayoutTable(), nil
	}
	var table PayoutTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return PayoutTable{}, Validation("payout_table is not valid JSON: %v", err)
	}
	if len(table.Tiers) == 0 {
		return DefaultPayoutTable(), nil
	}
	return table, table.Validate()
}

// Validate checks the table's structure independent of field size.
func (pt PayoutTable) Validate() error {
	for i, t := range pt.Tiers {
		byRank := t.FromRank > 0 || t.ToRank > 0
		byPercent := !t.TopPercent.IsZero()
		switch {
		case byRank && byPercent:
			return Validation("payout tier %d mixes rank range and top_percent", i)
		case !byRank && !byPercent:
			return Validation("payout tier %d needs a rank range or top_percent", i)
		case byRank && (t.FromRank < 1 || t.ToRank < t.FromRank):
			return Validation("payout tier %d has invalid rank range %d-%d", i, t.FromRank, t.ToRank)
		case byPercent && (t.TopPercent.IsNegative() || t.TopPercent.GreaterThan(hundred)):
			return Validation("payout tier %d top_percent must be within 0-100", i)
		case t.PoolShare.IsNegative() || t.FixedAmount.IsNegative():
			return Validation("payout tier %d has a negative amount", i)
		}
	}
	return nil
}

func (t PayoutTier) matches(rank, fieldSize int) bool {
	if t.TopPercent.IsPositive() {
		cutoff := decimal.NewFromInt(int64(fieldSize)).Mul(t.TopPercent).Div(hundred)
		return decimal.NewFromInt(int64(rank)).LessThanOrEqual(cutoff)
	}
	return rank >= t.FromRank && rank <= t.ToRank
}

// Payout is the reward assigned to one ranked participant.
type Payout struct {
	UserID      string
	Rank        int
	Amount      decimal.Decimal
	Type        string
	Description string
}

var rewardPrinter = message.NewPrinter(language.English)

// ComputePayouts assigns rewards to a final ranking. It fails when the pool shares
// would pay out more than the prize pool.
func ComputePayouts(table PayoutTable, prizePool decimal.Decimal, rankings []models.TournamentRanking) ([]Payout, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	fieldSize := len(rankings)
	payouts := make([]Payout, 0, fieldSize)
	poolUsed := decimal.Zero

	for _, r := range rankings {
		amount := decimal.Zero
		rewardType := RewardTypeTokens
		var labels []string
		claimed := map[string]bool{}

		for _, tier := range table.Tiers {
			if claimed[tier.Group] || !tier.matches(r.Rank, fieldSize) {
				continue
			}
			claimed[tier.Group] = true

			share := prizePool.Mul(tier.PoolShare).RoundDown(2)
			poolUsed = poolUsed.Add(share)
			tierAmount := tier.FixedAmount.Add(share).RoundDown(2)
			if !tierAmount.IsPositive() {
				continue
			}
			amount = amount.Add(tierAmount)
			if tier.RewardType != "" {
				rewardType = tier.RewardType
			}
			if tier.Label != "" {
				labels = append(labels, tier.Label)
			}
		}

		if poolUsed.GreaterThan(prizePool) {
			return nil, Validation("payout table distributes %s but the prize pool is %s", poolUsed.StringFixed(2), prizePool.StringFixed(2))
		}
		if !amount.IsPositive() {
			continue
		}
		payouts = append(payouts, Payout{
			UserID:      r.UserID,
			Rank:        r.Rank,
			Amount:      amount,
			Type:        rewardType,
			Description: describeReward(r.Rank, amount, rewardType, labels),
		})
	}
	return payouts, nil
}

func describeReward(rank int, amount decimal.Decimal, rewardType string, labels []string) string {
	desc := rewardPrinter.Sprintf("Rank #%d: %.2f %s", rank, amount.InexactFloat64(), rewardType)
	if len(labels) > 0 {
		desc += " (" + strings.Join(labels, ", ") + ")"
	}
	return desc
}

package services

import (
	"sort"
	"time"

	"invest-tournament-system/models"

	"github.com/shopspring/decimal"
)

// RankingInput is one participant as seen by the ranking computer. A nil Portfolio
// means the participant's valuation could not be loaded.
type RankingInput struct {
	UserID    string
	UserName  string
	JoinedAt  time.Time
	Portfolio *models.TournamentPortfolio
}

// ComputeRankings orders participants by return percentage and assigns ordinal ranks.
//
// Ties are broken by total assets (higher first), then by join time (earlier first),
// then by user id, so equal inputs always give equal output. previous maps user id to
// the rank in the prior snapshot. Participants without a portfolio are left out and
// returned in gaps.
func ComputeRankings(tournamentID string, inputs []RankingInput, previous map[string]int, now time.Time) (rankings []models.TournamentRanking, gaps []string) {
	ranked := make([]RankingInput, 0, len(inputs))
	for _, in := range inputs {
		if in.Portfolio == nil {
			gaps = append(gaps, in.UserID)
			continue
		}
		ranked = append(ranked, in)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Portfolio, ranked[j].Portfolio
		if c := a.ReturnPercentage.Cmp(b.ReturnPercentage); c != 0 {
			return c > 0
		}
		if c := a.TotalAssets.Cmp(b.TotalAssets); c != 0 {
			return c > 0
		}
		if !ranked[i].JoinedAt.Equal(ranked[j].JoinedAt) {
			return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
		}
		return ranked[i].UserID < ranked[j].UserID
	})

	rankings = make([]models.TournamentRanking, len(ranked))
	for i, in := range ranked {
		p := in.Portfolio
		rank := i + 1
		prev, seen := previous[in.UserID]
		delta := 0
		if seen {
			delta = prev - rank
		}
		rankings[i] = models.TournamentRanking{
			TournamentID:       tournamentID,
			UserID:             in.UserID,
			UserName:           in.UserName,
			Rank:               rank,
			PreviousRank:       prev,
			RankDelta:          delta,
			ChangeType:         classifyRankChange(delta, seen),
			TotalReturnPercent: p.ReturnPercentage,
			TotalReturn:        p.TotalReturn,
			TotalAssets:        p.TotalAssets,
			TotalTrades:        p.TotalTrades,
			WinRate:            p.WinRate().Round(4),
			Stale:              p.Stale,
			ComputedAt:         now,
		}
	}
	return rankings, gaps
}

func classifyRankChange(delta int, seen bool) models.RankChange {
	switch {
	case !seen:
		return models.RankChangeNewEntry
	case delta > 0:
		return models.RankChangeImprovement
	case delta < 0:
		return models.RankChangeDecline
	}
	return models.RankChangeStable
}

// TournamentStatistics summarises the return distribution of one ranking snapshot.
type TournamentStatistics struct {
	TournamentID      string          `json:"tournament_id,omitempty"`
	TotalParticipants int             `json:"total_participants"`
	AverageReturn     decimal.Decimal `json:"average_return"`
	MedianReturn      decimal.Decimal `json:"median_return"`
	StdDeviation      decimal.Decimal `json:"std_deviation"`
	BestReturn        decimal.Decimal `json:"best_return"`
	WorstReturn       decimal.Decimal `json:"worst_return"`
	PositiveCount     int             `json:"positive_count"`
	NegativeCount     int             `json:"negative_count"`
	NeutralCount      int             `json:"neutral_count"`
	WinnerPercentage  decimal.Decimal `json:"winner_percentage"`
	ActiveTournaments int             `json:"active_tournaments,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ComputeStatistics derives average, median, sample standard deviation and the
// winner/loser split from a ranking.
func ComputeStatistics(rankings []models.TournamentRanking, now time.Time) TournamentStatistics {
	stats := TournamentStatistics{TotalParticipants: len(rankings), UpdatedAt: now}
	if len(rankings) == 0 {
		return stats
	}

	returns := make([]decimal.Decimal, len(rankings))
	for i, r := range rankings {
		returns[i] = r.TotalReturnPercent
		switch r.TotalReturnPercent.Sign() {
		case 1:
			stats.PositiveCount++
		case -1:
			stats.NegativeCount++
		default:
			stats.NeutralCount++
		}
	}
	sort.Slice(returns, func(i, j int) bool { return returns[i].LessThan(returns[j]) })

	n := decimal.NewFromInt(int64(len(returns)))
	mean := decimal.Sum(returns[0], returns[1:]...).Div(n)
	stats.AverageReturn = mean.Round(4)
	stats.BestReturn = returns[len(returns)-1]
	stats.WorstReturn = returns[0]

	mid := len(returns) / 2
	if len(returns)%2 == 0 {
		stats.MedianReturn = returns[mid-1].Add(returns[mid]).Div(decimal.NewFromInt(2)).Round(4)
	} else {
		stats.MedianReturn = returns[mid].Round(4)
	}

	if len(returns) > 1 {
		variance := decimal.Zero
		for _, r := range returns {
			d := r.Sub(mean)
			variance = variance.Add(d.Mul(d))
		}
		variance = variance.Div(n.Sub(decimal.NewFromInt(1)))
		stats.StdDeviation = sqrtDecimal(variance).Round(4)
	}

	stats.WinnerPercentage = decimal.NewFromInt(int64(stats.PositiveCount)).Div(n).Mul(hundred).Round(2)
	return stats
}

func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	// Newton iteration.
	x := d
	two := decimal.NewFromInt(2)
	for i := 0; i < 32; i++ {
		next := x.Add(d.Div(x)).Div(two)
		if next.Sub(x).Abs().LessThan(decimal.New(1, -12)) {
			return next
		}
		x = next
	}
	return x
}

package services

import (
	"context"
	"sort"
	"time"

	"invest-tournament-system/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// standings is every participant of a tournament marked to market at one instant.
type standings struct {
	Inputs     []RankingInput
	Portfolios []*models.TournamentPortfolio
	Holdings   map[string][]models.TournamentHolding
	// Loaded is each portfolio's last_updated as read, keyed by portfolio id.
	Loaded map[string]time.Time
}

// loadStandings reads participants, portfolios and holdings and values them with prices.
// A nil prices keeps the stored valuation of every portfolio. db may be a transaction.
func loadStandings(ctx context.Context, db *gorm.DB, prices PriceSource, tournamentID string, now time.Time) (*standings, error) {
	var participants []models.TournamentParticipant
	if err := db.WithContext(ctx).
		Where("tournament_id = ? AND status = ?", tournamentID, models.ParticipantStatusActive).
		Order("joined_at ASC").
		Find(&participants).Error; err != nil {
		return nil, Transient(err, "failed to load participants")
	}

	var portfolios []models.TournamentPortfolio
	if err := db.WithContext(ctx).Where("tournament_id = ?", tournamentID).Find(&portfolios).Error; err != nil {
		return nil, Transient(err, "failed to load portfolios")
	}

	var holdings []models.TournamentHolding
	if err := db.WithContext(ctx).Where("tournament_id = ? AND shares > 0", tournamentID).Find(&holdings).Error; err != nil {
		return nil, Transient(err, "failed to load holdings")
	}

	byUser := make(map[string][]models.TournamentHolding)
	symbolSet := make(map[string]struct{})
	for _, h := range holdings {
		byUser[h.UserID] = append(byUser[h.UserID], h)
		symbolSet[h.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var marks PriceMap
	if prices != nil {
		var err error
		if marks, err = prices.Prices(ctx, symbols); err != nil {
			return nil, err
		}
	}

	portfolioByUser := make(map[string]*models.TournamentPortfolio, len(portfolios))
	for i := range portfolios {
		portfolioByUser[portfolios[i].UserID] = &portfolios[i]
	}

	out := &standings{Holdings: byUser, Loaded: make(map[string]time.Time, len(portfolios))}
	for _, part := range participants {
		in := RankingInput{UserID: part.UserID, UserName: part.UserName, JoinedAt: part.JoinedAt}
		if p, ok := portfolioByUser[part.UserID]; ok {
			out.Loaded[p.ID] = p.LastUpdated
			if marks != nil {
				v := ValuePortfolio(p.CashBalance, p.InitialBalance, byUser[part.UserID], marks)
				v.Apply(p, byUser[part.UserID], now)
			}
			in.Portfolio = p
			out.Portfolios = append(out.Portfolios, p)
		} else {
			logrus.WithFields(logrus.Fields{
				"tournament_id": tournamentID,
				"user_id":       part.UserID,
			}).Warn("🧩 [RANKING] Reconciliation gap: participant has no portfolio, excluded from ranking")
		}
		out.Inputs = append(out.Inputs, in)
	}
	return out, nil
}

package services

import (
	"context"
	"time"

	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PerformanceService struct {
	DB           *gorm.DB
	Rankings     *RankingService
	Achievements *AchievementService
	now          func() time.Time
}

func NewPerformanceService(db *gorm.DB, rankings *RankingService, achievements *AchievementService) *PerformanceService {
	return &PerformanceService{DB: db, Rankings: rankings, Achievements: achievements, now: time.Now}
}

// PerformancePoint is one day of a participant's history.
type PerformancePoint struct {
	Date             time.Time       `json:"date"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	ReturnPercentage decimal.Decimal `json:"return_percentage"`
	DailyReturn      decimal.Decimal `json:"daily_return"`
	Rank             int             `json:"rank"`
}

// TournamentPerformance is a user's record in one tournament.
type TournamentPerformance struct {
	TournamentID     string                  `json:"tournament_id"`
	TournamentName   string                  `json:"tournament_name"`
	Status           models.TournamentStatus `json:"status"`
	Rank             int                     `json:"rank,omitempty"`
	ReturnPercentage decimal.Decimal         `json:"return_percentage"`
	TotalAssets      decimal.Decimal         `json:"total_assets"`
	TotalTrades      int                     `json:"total_trades"`
	WinRate          decimal.Decimal         `json:"win_rate"`
	MaxDrawdown      decimal.Decimal         `json:"max_drawdown"`
	Volatility       decimal.Decimal         `json:"volatility"`
	SharpeRatio      *decimal.Decimal        `json:"sharpe_ratio,omitempty"`
	RewardAmount     *decimal.Decimal        `json:"reward_amount,omitempty"`
	History          []PerformancePoint      `json:"history"`
}

// PersonalPerformance aggregates a user's tournaments.
type PersonalPerformance struct {
	UserID              string                  `json:"user_id"`
	Range               TimeRange               `json:"range"`
	TournamentsJoined   int                     `json:"tournaments_joined"`
	ActiveTournaments   int                     `json:"active_tournaments"`
	FinishedTournaments int                     `json:"finished_tournaments"`
	BestRank            int                     `json:"best_rank,omitempty"`
	AverageReturn       decimal.Decimal         `json:"average_return"`
	TotalTrades         int                     `json:"total_trades"`
	WinRate             decimal.Decimal         `json:"win_rate"`
	MaxDrawdown         decimal.Decimal         `json:"max_drawdown"`
	SharpeRatio         *decimal.Decimal        `json:"sharpe_ratio,omitempty"`
	Tournaments         []TournamentPerformance `json:"tournaments"`
	Achievements        []UserAchievementView   `json:"achievements"`
	GeneratedAt         time.Time               `json:"generated_at"`
}

// Personal builds the performance overview of userID over rng.
func (s *PerformanceService) Personal(ctx context.Context, userID string, rng TimeRange) (*PersonalPerformance, error) {
	now := s.now()
	db := s.DB.WithContext(ctx)

	var portfolios []models.TournamentPortfolio
	if err := db.Where("user_id = ?", userID).Find(&portfolios).Error; err != nil {
		return nil, wrapDB(err, "portfolios")
	}
	ids := make([]string, len(portfolios))
	for i, p := range portfolios {
		ids[i] = p.TournamentID
	}

	var tournaments []models.Tournament
	var rankings []models.TournamentRanking
	var results []models.TournamentResult
	var snapshots []models.PortfolioSnapshot
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Find(&tournaments).Error; err != nil {
			return nil, wrapDB(err, "tournaments")
		}
		if err := db.Where("user_id = ? AND tournament_id IN ?", userID, ids).Find(&rankings).Error; err != nil {
			return nil, wrapDB(err, "rankings")
		}
		if err := db.Where("user_id = ?", userID).Find(&results).Error; err != nil {
			return nil, wrapDB(err, "results")
		}
		if err := db.Where("user_id = ? AND snapshot_date >= ?", userID, rng.Since(now)).
			Order("snapshot_date ASC").Find(&snapshots).Error; err != nil {
			return nil, wrapDB(err, "snapshots")
		}
	}

	byTournament := make(map[string]models.Tournament, len(tournaments))
	for _, t := range tournaments {
		byTournament[t.ID] = t
	}
	liveRank := make(map[string]int, len(rankings))
	for _, r := range rankings {
		liveRank[r.TournamentID] = r.Rank
	}
	resultFor := make(map[string]models.TournamentResult, len(results))
	for _, r := range results {
		resultFor[r.TournamentID] = r
	}
	history := make(map[string][]models.PortfolioSnapshot)
	for _, snap := range snapshots {
		history[snap.TournamentID] = append(history[snap.TournamentID], snap)
	}

	out := &PersonalPerformance{
		UserID:            userID,
		Range:             rng,
		TournamentsJoined: len(portfolios),
		Tournaments:       make([]TournamentPerformance, 0, len(portfolios)),
		GeneratedAt:       now,
	}

	var allReturns []decimal.Decimal
	returnSum := decimal.Zero
	winning, closed := 0, 0
	for _, p := range portfolios {
		t := byTournament[p.TournamentID]
		tp := TournamentPerformance{
			TournamentID:     p.TournamentID,
			TournamentName:   t.Name,
			Status:           t.Status,
			Rank:             liveRank[p.TournamentID],
			ReturnPercentage: p.ReturnPercentage,
			TotalAssets:      p.TotalAssets,
			TotalTrades:      p.TotalTrades,
			WinRate:          p.WinRate().Round(2),
			MaxDrawdown:      p.MaxDrawdown,
			History:          make([]PerformancePoint, 0, len(history[p.TournamentID])),
		}
		if res, ok := resultFor[p.TournamentID]; ok {
			tp.Rank = res.Rank
			tp.ReturnPercentage = res.ReturnPercentage
			tp.TotalAssets = res.FinalAssets
			tp.RewardAmount = res.RewardAmount
			out.FinishedTournaments++
			if out.BestRank == 0 || res.Rank < out.BestRank {
				out.BestRank = res.Rank
			}
		}
		if t.Status == models.TournamentStatusOngoing {
			out.ActiveTournaments++
		}

		var daily []decimal.Decimal
		for _, snap := range history[p.TournamentID] {
			tp.History = append(tp.History, PerformancePoint{
				Date:             snap.SnapshotDate,
				TotalAssets:      snap.TotalAssets,
				ReturnPercentage: snap.ReturnPercentage,
				DailyReturn:      snap.DailyReturn,
				Rank:             snap.Rank,
			})
			daily = append(daily, snap.DailyReturn)
		}
		tp.Volatility = Volatility(daily).Round(6)
		tp.SharpeRatio = SharpeRatio(daily)
		allReturns = append(allReturns, daily...)

		out.TotalTrades += p.TotalTrades
		closed += p.SellTrades
		winning += p.WinningTrades
		returnSum = returnSum.Add(tp.ReturnPercentage)
		if p.MaxDrawdown.GreaterThan(out.MaxDrawdown) {
			out.MaxDrawdown = p.MaxDrawdown
		}
		out.Tournaments = append(out.Tournaments, tp)
	}

	if n := len(portfolios); n > 0 {
		out.AverageReturn = returnSum.Div(decimal.NewFromInt(int64(n))).Round(4)
	}
	if closed > 0 {
		out.WinRate = decimal.NewFromInt(int64(winning)).
			Div(decimal.NewFromInt(int64(closed))).Mul(hundred).Round(2)
	}
	out.SharpeRatio = SharpeRatio(allReturns)

	if s.Achievements != nil {
		achievements, err := s.Achievements.ForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		out.Achievements = achievements
	}
	return out, nil
}

// PersonalPerformanceEndpoint handles GET /users/:user_id/performance?range=month.
func (s *PerformanceService) PersonalPerformanceEndpoint(c *fiber.Ctx) error {
	rng := TimeRange(c.Query("range", string(RangeMonth)))
	switch rng {
	case RangeWeek, RangeMonth, RangeQuarter, RangeYear, RangeAll:
	default:
		return respondError(c, Validation("range must be one of week, month, quarter, year, all"))
	}
	perf, err := s.Personal(c.Context(), c.Params("user_id"), rng)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(perf)
}

// TakeDailySnapshots records end-of-day valuations of every ongoing tournament and
// refreshes each portfolio's daily return and Sharpe ratio.
func (s *PerformanceService) TakeDailySnapshots(ctx context.Context) error {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("status = ?", models.TournamentStatusOngoing).
		Pluck("id", &ids).Error; err != nil {
		return Transient(err, "failed to list ongoing tournaments")
	}
	for _, id := range ids {
		if err := s.snapshotTournament(ctx, id); err != nil {
			logrus.WithError(err).WithField("tournament_id", id).Warn("⚠️ [SNAPSHOT] Daily snapshot failed")
		}
	}
	return nil
}

func (s *PerformanceService) snapshotTournament(ctx context.Context, tournamentID string) error {
	snap, err := s.Rankings.Recompute(ctx, tournamentID)
	if err != nil {
		return err
	}
	rankOf := make(map[string]int, len(snap.Rankings))
	for _, r := range snap.Rankings {
		rankOf[r.UserID] = r.Rank
	}

	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var portfolios []models.TournamentPortfolio
		if err := tx.Where("tournament_id = ?", tournamentID).Find(&portfolios).Error; err != nil {
			return err
		}
		var past []models.PortfolioSnapshot
		if err := tx.Where("tournament_id = ? AND snapshot_date < ?", tournamentID, day).
			Order("snapshot_date ASC").Find(&past).Error; err != nil {
			return err
		}
		series := make(map[string][]models.PortfolioSnapshot)
		for _, p := range past {
			series[p.UserID] = append(series[p.UserID], p)
		}

		for _, p := range portfolios {
			prior := series[p.UserID]
			base := p.InitialBalance
			if len(prior) > 0 {
				base = prior[len(prior)-1].TotalAssets
			}
			daily := DailyReturn(base, p.TotalAssets)

			row := models.PortfolioSnapshot{
				ID:               uuid.NewString(),
				TournamentID:     tournamentID,
				UserID:           p.UserID,
				SnapshotDate:     day,
				TotalAssets:      p.TotalAssets,
				CashBalance:      p.CashBalance,
				EquityValue:      p.EquityValue,
				ReturnPercentage: p.ReturnPercentage,
				DailyReturn:      daily,
				Rank:             rankOf[p.UserID],
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "tournament_id"}, {Name: "user_id"}, {Name: "snapshot_date"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"total_assets", "cash_balance", "equity_value", "return_percentage", "daily_return", "rank",
				}),
			}).Create(&row).Error; err != nil {
				return err
			}

			returns := make([]decimal.Decimal, 0, len(prior)+1)
			for _, ps := range prior {
				returns = append(returns, ps.DailyReturn)
			}
			returns = append(returns, daily)
			if err := tx.Model(&models.TournamentPortfolio{}).Where("id = ?", p.ID).Updates(map[string]any{
				"daily_return": daily,
				"sharpe_ratio": SharpeRatio(returns),
			}).Error; err != nil {
				return err
			}
		}
		logrus.WithFields(logrus.Fields{"tournament_id": tournamentID, "portfolios": len(portfolios)}).
			Info("📸 [SNAPSHOT] Daily snapshot stored")
		return nil
	})
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-tournament-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettlementStore persists settlements in postgres.
type GormSettlementStore struct {
	DB     *gorm.DB
	Prices PriceSource
}

func NewGormSettlementStore(db *gorm.DB, prices PriceSource) *GormSettlementStore {
	return &GormSettlementStore{DB: db, Prices: prices}
}

func (s *GormSettlementStore) Claim(ctx context.Context, tournamentID string, now time.Time) (*models.Tournament, ClaimState, error) {
	res := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("id = ? AND (status = ? OR (status = ? AND end_date <= ?))",
			tournamentID, models.TournamentStatusEnded, models.TournamentStatusOngoing, now).
		Update("status", models.TournamentStatusSettling)
	if res.Error != nil {
		return nil, 0, Transient(res.Error, "failed to claim tournament for settlement")
	}

	var t models.Tournament
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrTournamentNotFound
		}
		return nil, 0, Transient(err, "failed to load tournament")
	}
	if res.RowsAffected == 1 {
		return &t, ClaimAcquired, nil
	}

	switch t.Status {
	case models.TournamentStatusSettled:
		return &t, ClaimAlreadySettled, nil
	case models.TournamentStatusSettling:
		return nil, 0, ErrAlreadySettling
	case models.TournamentStatusOngoing:
		return nil, 0, &Error{Kind: KindConflict, Message: ErrNotSettleable.Message,
			Err: fmt.Errorf("trading is open until %s", t.EndDate.Format(time.RFC3339))}
	}
	return nil, 0, &Error{Kind: KindConflict, Message: ErrNotSettleable.Message,
		Err: fmt.Errorf("status is %s", t.Status)}
}

// Standings ranks the valuations frozen when trading closed. A tournament settled
// straight from ongoing has no frozen valuation and is marked to market now.
func (s *GormSettlementStore) Standings(ctx context.Context, t *models.Tournament, now time.Time) ([]RankingInput, error) {
	var prices PriceSource
	if t.FrozenAt == nil {
		prices = s.Prices
	}
	st, err := loadStandings(ctx, s.DB, prices, t.ID, now)
	if err != nil {
		return nil, err
	}
	return st.Inputs, nil
}

func (s *GormSettlementStore) Commit(ctx context.Context, t *models.Tournament, results []models.TournamentResult, payouts []Payout, now time.Time) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", t.ID).Error; err != nil {
			return err
		}
		if locked.Status != models.TournamentStatusSettling {
			return ErrAlreadySettling
		}

		var existing int64
		if err := tx.Model(&models.TournamentResult{}).Where("tournament_id = ?", t.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Fatal(fmt.Errorf("%d result rows already present", existing), "settlement results exist for a tournament that is not settled")
		}

		if len(results) > 0 {
			if err := tx.CreateInBatches(&results, 200).Error; err != nil {
				return err
			}
		}

		for _, p := range payouts {
			ref := fmt.Sprintf("settlement:%s:%s", t.ID, p.UserID)
			if err := applyWalletTx(tx, p.UserID, p.Amount, models.WalletTxReward, ref, p.Description); err != nil {
				return fmt.Errorf("credit reward to %s: %w", p.UserID, err)
			}
		}

		tid := t.ID
		for _, r := range results {
			updates := map[string]any{"tournaments_finished": gorm.Expr("tournaments_finished + 1")}
			if r.Rank <= 3 {
				updates["top_three_finishes"] = gorm.Expr("top_three_finishes + 1")
			}
			if r.Rank == 1 {
				updates["tournaments_won"] = gorm.Expr("tournaments_won + 1")
			}
			updates["best_rank"] = gorm.Expr("CASE WHEN best_rank = 0 OR best_rank > ? THEN ? ELSE best_rank END", r.Rank, r.Rank)
			stats, err := bumpStats(tx, r.UserID, updates)
			if err != nil {
				return err
			}
			if _, err := awardAchievements(tx, stats, &tid); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Tournament{}).Where("id = ?", t.ID).Updates(map[string]any{
			"status":     models.TournamentStatusSettled,
			"settled_at": now,
		}).Error; err != nil {
			return err
		}

		activity := newActivity(t.ID, "", "", models.ActivitySettled,
			fmt.Sprintf("%s has been settled with %d results", t.Name, len(results)))
		activity.Metadata = map[string]any{"participants": len(results), "rewards": len(payouts)}
		return tx.Create(&activity).Error
	})
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return Transient(err, "settlement transaction rolled back")
}

func (s *GormSettlementStore) Release(ctx context.Context, tournamentID string) error {
	return s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("id = ? AND status = ?", tournamentID, models.TournamentStatusSettling).
		Update("status", models.TournamentStatusEnded).Error
}

func (s *GormSettlementStore) Results(ctx context.Context, tournamentID string) ([]models.TournamentResult, error) {
	var results []models.TournamentResult
	if err := s.DB.WithContext(ctx).Where("tournament_id = ?", tournamentID).Order("rank ASC").Find(&results).Error; err != nil {
		return nil, Transient(err, "failed to load results")
	}
	return results, nil
}

func (s *GormSettlementStore) SetReportURL(ctx context.Context, tournamentID, url string) error {
	return s.DB.WithContext(ctx).Model(&models.Tournament{}).Where("id = ?", tournamentID).Update("report_url", url).Error
}

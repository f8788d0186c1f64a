package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"invest-tournament-system/cache"
	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// bigMoveThreshold is the rank jump that is written to the activity feed.
const bigMoveThreshold = 5

// RankingSnapshot is an immutable, fully formed ranking. Readers share it; a recompute
// replaces the pointer instead of editing it.
type RankingSnapshot struct {
	TournamentID string                     `json:"tournament_id"`
	Version      int64                      `json:"version"`
	Rankings     []models.TournamentRanking `json:"rankings"`
	Statistics   TournamentStatistics       `json:"statistics"`
	Gaps         []string                   `json:"-"`
	ComputedAt   time.Time                  `json:"computed_at"`
}

func (s *RankingSnapshot) previousRanks() map[string]int {
	prev := make(map[string]int, len(s.Rankings))
	for _, r := range s.Rankings {
		prev[r.UserID] = r.Rank
	}
	return prev
}

// RankingService owns the live ranking of every tournament. Recomputes for the same
// tournament are collapsed into one writer; reads never block on a recompute.
type RankingService struct {
	DB     *gorm.DB
	Prices PriceSource
	Redis  *redis.Client
	Hub    *EventHub

	snapshots *xsync.MapOf[string, *atomic.Pointer[RankingSnapshot]]
	flight    singleflight.Group
	parallel  int
	now       func() time.Time
}

func NewRankingService(db *gorm.DB, prices PriceSource, rdb *redis.Client, hub *EventHub) *RankingService {
	return &RankingService{
		DB:        db,
		Prices:    prices,
		Redis:     rdb,
		Hub:       hub,
		snapshots: xsync.NewMapOf[string, *atomic.Pointer[RankingSnapshot]](),
		parallel:  4,
		now:       time.Now,
	}
}

func (s *RankingService) slot(tournamentID string) *atomic.Pointer[RankingSnapshot] {
	p, _ := s.snapshots.LoadOrCompute(tournamentID, func() *atomic.Pointer[RankingSnapshot] {
		return &atomic.Pointer[RankingSnapshot]{}
	})
	return p
}

// Snapshot returns the latest published ranking, if any.
func (s *RankingService) Snapshot(tournamentID string) (*RankingSnapshot, bool) {
	p, ok := s.snapshots.Load(tournamentID)
	if !ok {
		return nil, false
	}
	snap := p.Load()
	return snap, snap != nil
}

// publish installs snap as the current ranking and notifies subscribers. A snapshot
// computed before the installed one is dropped.
func (s *RankingService) publish(snap *RankingSnapshot) bool {
	slot := s.slot(snap.TournamentID)
	for {
		old := slot.Load()
		if old != nil && old.ComputedAt.After(snap.ComputedAt) {
			return false
		}
		snap.Version = 1
		if old != nil {
			snap.Version = old.Version + 1
		}
		if slot.CompareAndSwap(old, snap) {
			break
		}
	}
	if s.Hub != nil {
		s.Hub.Publish(Event{Type: EventRankings, TournamentID: snap.TournamentID, Payload: snap, At: snap.ComputedAt})
	}
	return true
}

// Forget drops the in-memory snapshot of a tournament.
func (s *RankingService) Forget(tournamentID string) {
	s.snapshots.Delete(tournamentID)
}

// Recompute values every participant and publishes a new ranking snapshot.
// Concurrent calls for the same tournament share one computation.
func (s *RankingService) Recompute(ctx context.Context, tournamentID string) (*RankingSnapshot, error) {
	v, err, _ := s.flight.Do(tournamentID, func() (any, error) {
		return s.recompute(ctx, tournamentID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RankingSnapshot), nil
}

// Refresh recomputes from a fresh read even when a recompute is already running, so the
// result reflects every write that committed before the call.
func (s *RankingService) Refresh(ctx context.Context, tournamentID string) (*RankingSnapshot, error) {
	s.flight.Forget(tournamentID)
	return s.Recompute(ctx, tournamentID)
}

func (s *RankingService) previousRanks(ctx context.Context, tournamentID string) (map[string]int, error) {
	if snap, ok := s.Snapshot(tournamentID); ok {
		return snap.previousRanks(), nil
	}
	var rows []models.TournamentRanking
	if err := s.DB.WithContext(ctx).Where("tournament_id = ?", tournamentID).Find(&rows).Error; err != nil {
		return nil, Transient(err, "failed to load previous rankings")
	}
	prev := make(map[string]int, len(rows))
	for _, r := range rows {
		prev[r.UserID] = r.Rank
	}
	return prev, nil
}

func (s *RankingService) recompute(ctx context.Context, tournamentID string) (*RankingSnapshot, error) {
	var t models.Tournament
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, Transient(err, "failed to load tournament")
	}

	now := s.now()
	st, err := loadStandings(ctx, s.DB, s.Prices, tournamentID, now)
	if err != nil {
		return nil, err
	}
	prev, err := s.previousRanks(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	rankings, gaps := ComputeRankings(tournamentID, st.Inputs, prev, now)
	stats := ComputeStatistics(rankings, now)
	stats.TournamentID = tournamentID

	// Frozen tournaments keep their stored valuations.
	if t.Status == models.TournamentStatusOngoing {
		if err := s.persist(ctx, &t, st, rankings, len(prev) > 0); err != nil {
			return nil, err
		}
	}

	snap := &RankingSnapshot{
		TournamentID: tournamentID,
		Rankings:     rankings,
		Statistics:   stats,
		Gaps:         gaps,
		ComputedAt:   now,
	}
	s.publish(snap)
	s.mirror(ctx, snap)

	logrus.WithFields(logrus.Fields{
		"tournament_id": tournamentID,
		"ranked":        len(rankings),
		"gaps":          len(gaps),
	}).Debug("📊 [RANKING] Snapshot published")
	return snap, nil
}

// persist stores the valuations and the ranking. A portfolio written by a trade after it
// was loaded keeps the trade's figures.
func (s *RankingService) persist(ctx context.Context, t *models.Tournament, st *standings, rankings []models.TournamentRanking, hadPrevious bool) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skipped := 0
		for _, p := range st.Portfolios {
			var cur models.TournamentPortfolio
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id", "last_updated").First(&cur, "id = ?", p.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					skipped++
					continue
				}
				return err
			}
			if !cur.LastUpdated.Equal(st.Loaded[p.ID]) {
				skipped++
				continue
			}
			if err := tx.Model(&models.TournamentPortfolio{}).Where("id = ?", p.ID).Updates(map[string]any{
				"equity_value":      p.EquityValue,
				"total_assets":      p.TotalAssets,
				"total_return":      p.TotalReturn,
				"return_percentage": p.ReturnPercentage,
				"max_drawdown":      p.MaxDrawdown,
				"peak_assets":       p.PeakAssets,
				"last_updated":      p.LastUpdated,
			}).Error; err != nil {
				return err
			}
			for _, h := range st.Holdings[p.UserID] {
				if h.Stale {
					continue
				}
				if err := tx.Model(&models.TournamentHolding{}).Where("id = ?", h.ID).
					Update("current_price", h.CurrentPrice).Error; err != nil {
					return err
				}
			}
		}

		if skipped > 0 {
			logrus.WithFields(logrus.Fields{"tournament_id": t.ID, "skipped": skipped}).
				Debug("📊 [RANKING] Portfolios changed during recompute, kept their newer valuation")
		}

		if err := tx.Where("tournament_id = ?", t.ID).Delete(&models.TournamentRanking{}).Error; err != nil {
			return err
		}
		if len(rankings) > 0 {
			if err := tx.Create(&rankings).Error; err != nil {
				return err
			}
		}

		if !hadPrevious {
			return nil
		}
		for _, r := range rankings {
			if r.RankDelta >= bigMoveThreshold || r.RankDelta <= -bigMoveThreshold {
				direction := "climbed"
				if r.RankDelta < 0 {
					direction = "dropped"
				}
				activity := newActivity(t.ID, r.UserID, r.UserName, models.ActivityRankChange,
					fmt.Sprintf("%s %s %d places to #%d", r.UserName, direction, abs(r.RankDelta), r.Rank))
				activity.Metadata = map[string]any{"previous_rank": r.PreviousRank, "rank": r.Rank}
				if err := tx.Create(&activity).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// mirror writes the ranking into a redis sorted set for other services. Best effort.
func (s *RankingService) mirror(ctx context.Context, snap *RankingSnapshot) {
	if s.Redis == nil {
		return
	}
	board := fmt.Sprintf(cache.KeyLeaderboard, snap.TournamentID)
	blob := fmt.Sprintf(cache.KeyRankingJSON, snap.TournamentID)
	payload, err := json.Marshal(snap)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ [RANKING] Failed to encode snapshot for redis")
		return
	}

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, board)
	for _, r := range snap.Rankings {
		pipe.ZAdd(ctx, board, redis.Z{Score: r.TotalReturnPercent.InexactFloat64(), Member: r.UserID})
	}
	pipe.Set(ctx, blob, payload, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithField("tournament_id", snap.TournamentID).Warn("⚠️ [RANKING] Redis mirror failed")
	}
}

// Invalidate schedules a background refresh after a committed write, e.g. a trade.
func (s *RankingService) Invalidate(tournamentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Refresh(ctx, tournamentID); err != nil {
			logrus.WithError(err).WithField("tournament_id", tournamentID).Warn("⚠️ [RANKING] Trade-triggered recompute failed")
		}
	}()
}

// RecomputeActive refreshes every ongoing tournament with bounded parallelism.
func (s *RankingService) RecomputeActive(ctx context.Context) error {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("status = ?", models.TournamentStatusOngoing).
		Pluck("id", &ids).Error; err != nil {
		return Transient(err, "failed to list ongoing tournaments")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.Recompute(gctx, id); err != nil {
				logrus.WithError(err).WithField("tournament_id", id).Warn("⚠️ [RANKING] Recompute failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// current returns the published snapshot, computing one on first use.
func (s *RankingService) current(ctx context.Context, tournamentID string) (*RankingSnapshot, error) {
	if snap, ok := s.Snapshot(tournamentID); ok {
		return snap, nil
	}
	return s.Recompute(ctx, tournamentID)
}

// GetRankingsEndpoint serves the latest snapshot.
func (s *RankingService) GetRankingsEndpoint(c *fiber.Ctx) error {
	snap, err := s.current(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

// RefreshRankingsEndpoint forces a recompute and returns the new ranking.
func (s *RankingService) RefreshRankingsEndpoint(c *fiber.Ctx) error {
	snap, err := s.Recompute(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap.Rankings)
}

// GetStatisticsEndpoint serves the return distribution of one tournament.
func (s *RankingService) GetStatisticsEndpoint(c *fiber.Ctx) error {
	snap, err := s.current(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap.Statistics)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// gatedPrices blocks the first lookup until gate is closed.
type gatedPrices struct {
	calls atomic.Int32
	gate  chan struct{}
	marks StaticPrices
}

func (g *gatedPrices) Prices(ctx context.Context, symbols []string) (PriceMap, error) {
	if g.calls.Add(1) == 1 {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.marks.Prices(ctx, symbols)
}

// steppingClock returns a later instant on every call.
func steppingClock(start time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func seedHolding(t *testing.T, db *gorm.DB, tm *models.Tournament, userID, symbol string, shares int64, avg string) {
	t.Helper()
	require.NoError(t, db.Create(&models.TournamentHolding{
		ID:           uuid.NewString(),
		TournamentID: tm.ID,
		UserID:       userID,
		Symbol:       symbol,
		Shares:       shares,
		AveragePrice: d(avg),
		CurrentPrice: d(avg),
	}).Error)
}

func TestPublishDropsOlderSnapshot(t *testing.T) {
	svc := NewRankingService(nil, nil, nil, nil)

	newer := &RankingSnapshot{TournamentID: "t-1", ComputedAt: rankNow}
	older := &RankingSnapshot{TournamentID: "t-1", ComputedAt: rankNow.Add(-time.Minute)}

	assert.True(t, svc.publish(newer))
	assert.False(t, svc.publish(older))

	snap, ok := svc.Snapshot("t-1")
	require.True(t, ok)
	assert.Same(t, newer, snap)
	assert.Equal(t, int64(1), snap.Version)

	next := &RankingSnapshot{TournamentID: "t-1", ComputedAt: rankNow.Add(time.Minute)}
	assert.True(t, svc.publish(next))
	assert.Equal(t, int64(2), next.Version)
}

func TestPersistKeepsValuationWrittenByTrade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tm := seedTournament(t, db, "Race Cup", models.TournamentStatusOngoing, rankNow.AddDate(0, 0, 7))
	joined := rankNow.AddDate(0, 0, -7)
	trader := seedMember(t, db, tm, "trader", "950000", joined)
	idle := seedMember(t, db, tm, "idle", "950000", joined.Add(time.Hour))
	seedHolding(t, db, tm, "trader", "2330", 100, "500")
	seedHolding(t, db, tm, "idle", "2330", 100, "500")

	svc := NewRankingService(db, StaticPrices{"2330": d("600")}, nil, nil)
	st, err := loadStandings(ctx, db, svc.Prices, tm.ID, rankNow)
	require.NoError(t, err)
	rankings, _ := ComputeRankings(tm.ID, st.Inputs, nil, rankNow)

	// A trade commits between the read and the write.
	traded := rankNow.Add(time.Second)
	require.NoError(t, db.Model(&models.TournamentPortfolio{}).Where("id = ?", trader.ID).Updates(map[string]any{
		"cash_balance": d("1010000"),
		"equity_value": d("0"),
		"total_assets": d("1010000"),
		"last_updated": traded,
	}).Error)

	require.NoError(t, svc.persist(ctx, tm, st, rankings, false))

	got := storedPortfolio(t, db, tm.ID, "trader")
	assert.True(t, got.TotalAssets.Equal(d("1010000")), "the trade's figures survive")
	assert.True(t, got.LastUpdated.Equal(traded))

	other := storedPortfolio(t, db, tm.ID, "idle")
	assert.Equal(t, idle.ID, other.ID)
	assert.True(t, other.TotalAssets.Equal(d("1010000")), "untouched portfolios take the new marks")
	assert.True(t, other.LastUpdated.Equal(rankNow))

	assert.Equal(t, int64(2), countRows(t, db, &models.TournamentRanking{}, "tournament_id = ?", tm.ID))
}

func TestRefreshDoesNotJoinRunningRecompute(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tm := seedTournament(t, db, "Gate Cup", models.TournamentStatusOngoing, rankNow.AddDate(0, 0, 7))
	seedMember(t, db, tm, "u-1", "1000000", rankNow.AddDate(0, 0, -7))
	seedHolding(t, db, tm, "u-1", "2330", 10, "500")

	prices := &gatedPrices{gate: make(chan struct{}), marks: StaticPrices{"2330": d("550")}}
	svc := NewRankingService(db, prices, nil, nil)
	svc.now = steppingClock(rankNow)

	stale := make(chan *RankingSnapshot, 1)
	go func() {
		snap, err := svc.Recompute(ctx, tm.ID)
		assert.NoError(t, err)
		stale <- snap
	}()
	require.Eventually(t, func() bool { return prices.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	fresh, err := svc.Refresh(ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), prices.calls.Load(), "refresh ran its own computation")

	close(prices.gate)
	first := <-stale
	assert.NotSame(t, fresh, first)
	assert.True(t, first.ComputedAt.Before(fresh.ComputedAt))

	current, ok := svc.Snapshot(tm.ID)
	require.True(t, ok)
	assert.Same(t, fresh, current, "the late, older computation is not published")
}

package services

import (
	"context"
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementDueListsEndedAndOverdue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	leftEnded := seedTournament(t, db, "Left Ended", models.TournamentStatusEnded, cupEnd.AddDate(0, 0, -1))
	overdue := seedTournament(t, db, "Overdue", models.TournamentStatusOngoing, cupEnd)
	seedTournament(t, db, "Running", models.TournamentStatusOngoing, cupEnd.AddDate(0, 0, 7))
	seedTournament(t, db, "Done", models.TournamentStatusSettled, cupEnd.AddDate(0, 0, -3))
	seedTournament(t, db, "Called Off", models.TournamentStatusCancelled, cupEnd.AddDate(0, 0, -2))

	tournaments := NewTournamentService(db, nil, nil, initialBalance)
	tournaments.now = func() time.Time { return cupEnd.Add(time.Hour) }

	due, err := tournaments.SettlementDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{leftEnded.ID, overdue.ID}, due)

	assert.Equal(t, 2, settleDue(ctx, tournaments, gormEngine(db, StaticPrices{})))
	assert.Equal(t, models.TournamentStatusSettled, tournamentStatus(t, db, leftEnded.ID))
	assert.Equal(t, models.TournamentStatusSettled, tournamentStatus(t, db, overdue.ID))

	due, err = tournaments.SettlementDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSettleDueRetriesReleasedClaim(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	busy := seedTournament(t, db, "Busy", models.TournamentStatusEnded, cupEnd)

	tournaments := NewTournamentService(db, nil, nil, initialBalance)
	tournaments.now = func() time.Time { return cupEnd.Add(time.Hour) }
	store := NewGormSettlementStore(db, StaticPrices{})
	_, _, err := store.Claim(ctx, busy.ID, cupEnd.Add(time.Hour))
	require.NoError(t, err)

	engine := gormEngine(db, StaticPrices{})
	assert.Zero(t, settleDue(ctx, tournaments, engine), "a claimed tournament is left to its owner")

	require.NoError(t, store.Release(ctx, busy.ID))
	assert.Equal(t, 1, settleDue(ctx, tournaments, engine), "a released claim is retried")
	assert.Equal(t, models.TournamentStatusSettled, tournamentStatus(t, db, busy.ID))
}

func TestEndingTournamentFreezesValuation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tm := seedTournament(t, db, "Freeze Cup", models.TournamentStatusOngoing, cupEnd)
	joined := cupEnd.AddDate(0, 0, -20)
	seedMember(t, db, tm, "alice", "500000", joined)
	seedHolding(t, db, tm, "alice", "2330", 1000, "500")
	seedMember(t, db, tm, "bob", "1050000", joined.Add(time.Hour))

	rankings := NewRankingService(db, StaticPrices{"2330": d("600")}, nil, nil)
	rankings.now = func() time.Time { return cupEnd.Add(30 * time.Second) }
	tournaments := NewTournamentService(db, nil, rankings, initialBalance)
	tournaments.now = func() time.Time { return cupEnd.Add(time.Minute) }

	ended, err := tournaments.AdvanceStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{tm.ID}, ended)

	var stored models.Tournament
	require.NoError(t, db.First(&stored, "id = ?", tm.ID).Error)
	assert.Equal(t, models.TournamentStatusEnded, stored.Status)
	require.NotNil(t, stored.FrozenAt)
	assert.True(t, storedPortfolio(t, db, tm.ID, "alice").TotalAssets.Equal(d("1100000")))

	// The quote collapses after the close; settlement still ranks the frozen figures.
	assert.Equal(t, 1, settleDue(ctx, tournaments, gormEngine(db, StaticPrices{"2330": d("300")})))

	var results []models.TournamentResult
	require.NoError(t, db.Where("tournament_id = ?", tm.ID).Order("rank ASC").Find(&results).Error)
	require.Len(t, results, 2)
	assert.Equal(t, "alice", results[0].UserID)
	assert.True(t, results[0].FinalAssets.Equal(d("1100000")))
	assert.Equal(t, "bob", results[1].UserID)
}

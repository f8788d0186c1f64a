package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySettlementStore keeps one tournament in memory and mimics the conditional
// status updates of the gorm store.
type memorySettlementStore struct {
	mu         sync.Mutex
	tournament models.Tournament
	inputs     []RankingInput
	results    []models.TournamentResult
	credited   map[string]string
	commitErr  error
	commits    int
	releases   int
	reportURL  string
	standingsC chan struct{}
}

func newMemoryStore(status models.TournamentStatus, inputs []RankingInput) *memorySettlementStore {
	return &memorySettlementStore{
		tournament: models.Tournament{
			ID:        "t-1",
			Name:      "Spring Cup",
			Status:    status,
			EndDate:   rankNow.Add(-time.Hour),
			PrizePool: d("10000"),
		},
		inputs:   inputs,
		credited: map[string]string{},
	}
}

func (m *memorySettlementStore) Claim(_ context.Context, _ string, now time.Time) (*models.Tournament, ClaimState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.tournament.Status {
	case models.TournamentStatusSettled:
		return nil, ClaimAlreadySettled, nil
	case models.TournamentStatusSettling:
		return nil, 0, ErrAlreadySettling
	case models.TournamentStatusEnded:
	case models.TournamentStatusOngoing:
		if now.Before(m.tournament.EndDate) {
			return nil, 0, ErrNotSettleable
		}
	default:
		return nil, 0, ErrNotSettleable
	}
	m.tournament.Status = models.TournamentStatusSettling
	t := m.tournament
	return &t, ClaimAcquired, nil
}

func (m *memorySettlementStore) Standings(context.Context, *models.Tournament, time.Time) ([]RankingInput, error) {
	if m.standingsC != nil {
		<-m.standingsC
	}
	return m.inputs, nil
}

func (m *memorySettlementStore) Commit(_ context.Context, _ *models.Tournament, results []models.TournamentResult, payouts []Payout, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	if len(m.results) > 0 {
		return Fatal(nil, "results already exist")
	}
	m.commits++
	m.results = append([]models.TournamentResult(nil), results...)
	for _, p := range payouts {
		m.credited[p.UserID] = p.Amount.String()
	}
	m.tournament.Status = models.TournamentStatusSettled
	m.tournament.SettledAt = &now
	return nil
}

func (m *memorySettlementStore) Release(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	if m.tournament.Status == models.TournamentStatusSettling {
		m.tournament.Status = models.TournamentStatusEnded
	}
	return nil
}

func (m *memorySettlementStore) Results(context.Context, string) ([]models.TournamentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TournamentResult(nil), m.results...), nil
}

func (m *memorySettlementStore) SetReportURL(_ context.Context, _ string, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportURL = url
	return nil
}

type recordingArchiver struct {
	keys []string
	err  error
}

func (a *recordingArchiver) Archive(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, key)
	return "https://cdn.example/" + key, nil
}

func settlementField() []RankingInput {
	joined := rankNow.AddDate(0, 0, -20)
	return []RankingInput{
		participant("carol", "980000", joined),
		participant("alice", "1150000", joined),
		participant("bob", "1100000", joined),
		participant("dave", "1000000", joined),
	}
}

func newTestEngine(store SettlementStore, hub *EventHub, archiver ReportArchiver) *SettlementEngine {
	e := NewSettlementEngine(store, hub, archiver)
	e.now = func() time.Time { return rankNow }
	return e
}

func TestSettleWritesResultsAndPays(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusEnded, settlementField())
	archiver := &recordingArchiver{}
	hub := NewEventHub()
	events, cancel := hub.Subscribe("t-1")
	defer cancel()

	results, err := newTestEngine(store, hub, archiver).Settle(context.Background(), "t-1")
	require.NoError(t, err)

	require.Len(t, results, 4)
	assert.Equal(t, []string{"alice", "bob", "dave", "carol"}, []string{
		results[0].UserID, results[1].UserID, results[2].UserID, results[3].UserID,
	})
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
	require.NotNil(t, results[0].RewardAmount)
	assert.True(t, results[0].RewardAmount.Equal(d("5500")), results[0].RewardAmount.String())
	assert.Nil(t, results[3].RewardAmount)

	assert.Equal(t, models.TournamentStatusSettled, store.tournament.Status)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, "5500", store.credited["alice"])
	assert.Equal(t, []string{"settlements/spring-cup-t-1.json"}, archiver.keys)
	assert.Equal(t, "https://cdn.example/settlements/spring-cup-t-1.json", store.reportURL)

	select {
	case ev := <-events:
		assert.Equal(t, EventSettled, ev.Type)
	default:
		t.Fatal("expected a settled event")
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusEnded, settlementField())
	engine := newTestEngine(store, nil, nil)

	first, err := engine.Settle(context.Background(), "t-1")
	require.NoError(t, err)
	second, err := engine.Settle(context.Background(), "t-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.commits, "second call must not pay again")
}

func TestSettleFailureLeavesNoResults(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusEnded, settlementField())
	store.commitErr = Transient(errors.New("connection reset"), "commit failed")
	engine := newTestEngine(store, nil, nil)

	_, err := engine.Settle(context.Background(), "t-1")
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, models.TournamentStatusEnded, store.tournament.Status)
	assert.Empty(t, store.results)
	assert.Empty(t, store.credited)
	assert.Equal(t, 1, store.releases)

	store.commitErr = nil
	results, err := engine.Settle(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, models.TournamentStatusSettled, store.tournament.Status)
}

func TestSettleRejectsUnfinishedTournament(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusOngoing, settlementField())
	store.tournament.EndDate = rankNow.Add(time.Hour)

	_, err := newTestEngine(store, nil, nil).Settle(context.Background(), "t-1")
	require.ErrorIs(t, err, ErrNotSettleable)
	assert.Equal(t, models.TournamentStatusOngoing, store.tournament.Status)
	assert.Zero(t, store.releases, "nothing was claimed, nothing to release")
}

func TestSettleOngoingPastEndDate(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusOngoing, settlementField())

	results, err := newTestEngine(store, nil, nil).Settle(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestSettleEmptyTournament(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusEnded, nil)

	results, err := newTestEngine(store, nil, nil).Settle(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, models.TournamentStatusSettled, store.tournament.Status)
}

func TestSettleArchiveFailureIsNotFatal(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusEnded, settlementField())
	archiver := &recordingArchiver{err: errors.New("bucket unavailable")}

	results, err := newTestEngine(store, nil, archiver).Settle(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Empty(t, store.reportURL)
}

func TestSettleConcurrentCallsSettleOnce(t *testing.T) {
	store := newMemoryStore(models.TournamentStatusEnded, settlementField())
	store.standingsC = make(chan struct{})
	engine := newTestEngine(store, nil, nil)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	outs := make([][]models.TournamentResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = engine.Settle(context.Background(), "t-1")
		}(i)
	}
	// The winner is parked in Standings until every loser has been turned away.
	time.Sleep(50 * time.Millisecond)
	close(store.standingsC)
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			assert.Len(t, outs[i], 4)
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadySettling)
	}
	assert.GreaterOrEqual(t, succeeded, 1)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, models.TournamentStatusSettled, store.tournament.Status)
}

func TestBuildResultsAttachesPayouts(t *testing.T) {
	rankings := field(2)
	payouts := []Payout{{UserID: "u1", Rank: 1, Amount: d("100"), Type: RewardTypeTokens, Description: "Rank #1"}}

	results := BuildResults("t-1", rankings, payouts, rankNow)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].RewardAmount)
	assert.True(t, results[0].RewardAmount.Equal(d("100")))
	assert.Equal(t, "Rank #1", results[0].RewardDescription)
	assert.Nil(t, results[1].RewardAmount)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
)

// ClaimState is the outcome of trying to take a tournament into settlement.
type ClaimState int

const (
	ClaimAcquired ClaimState = iota
	ClaimAlreadySettled
)

// SettlementStore is the persistence boundary of the settlement engine.
type SettlementStore interface {
	// Claim moves an ended tournament (or an ongoing one past its end date) to settling.
	// A settled tournament yields ClaimAlreadySettled; a settling one ErrAlreadySettling.
	Claim(ctx context.Context, tournamentID string, now time.Time) (*models.Tournament, ClaimState, error)
	// Standings returns every participant valued at the cutoff.
	Standings(ctx context.Context, t *models.Tournament, now time.Time) ([]RankingInput, error)
	// Commit writes all results, credits all payouts and marks the tournament settled,
	// atomically.
	Commit(ctx context.Context, t *models.Tournament, results []models.TournamentResult, payouts []Payout, now time.Time) error
	// Release returns a settling tournament to ended after a failed attempt.
	Release(ctx context.Context, tournamentID string) error
	Results(ctx context.Context, tournamentID string) ([]models.TournamentResult, error)
	SetReportURL(ctx context.Context, tournamentID, url string) error
}

// ReportArchiver stores a settlement report and returns where it can be fetched.
type ReportArchiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// SettlementEngine freezes final rankings and pays out rewards exactly once.
type SettlementEngine struct {
	Store    SettlementStore
	Hub      *EventHub
	Archiver ReportArchiver
	now      func() time.Time
}

func NewSettlementEngine(store SettlementStore, hub *EventHub, archiver ReportArchiver) *SettlementEngine {
	return &SettlementEngine{Store: store, Hub: hub, Archiver: archiver, now: time.Now}
}

// SettlementReport is the archived summary of a settlement.
type SettlementReport struct {
	TournamentID string                    `json:"tournament_id"`
	Name         string                    `json:"name"`
	PrizePool    string                    `json:"prize_pool"`
	SettledAt    time.Time                 `json:"settled_at"`
	Results      []models.TournamentResult `json:"results"`
}

// Settle settles a tournament. Calling it on a settled tournament returns the stored
// results without recomputing anything.
func (e *SettlementEngine) Settle(ctx context.Context, tournamentID string) (results []models.TournamentResult, err error) {
	now := e.now()
	t, state, err := e.Store.Claim(ctx, tournamentID, now)
	if err != nil {
		return nil, err
	}
	if state == ClaimAlreadySettled {
		logrus.WithField("tournament_id", tournamentID).Info("♻️ [SETTLEMENT] Already settled, returning stored results")
		return e.Store.Results(ctx, tournamentID)
	}

	log := logrus.WithField("tournament_id", tournamentID)
	defer func() {
		if err == nil {
			return
		}
		if rerr := e.Store.Release(context.WithoutCancel(ctx), tournamentID); rerr != nil {
			log.WithError(rerr).Error("🔥 [SETTLEMENT] Failed to release settling tournament, manual intervention needed")
			return
		}
		log.WithError(err).Warn("↩️ [SETTLEMENT] Settlement aborted, tournament returned to ended")
	}()

	inputs, err := e.Store.Standings(ctx, t, now)
	if err != nil {
		return nil, err
	}
	rankings, gaps := ComputeRankings(t.ID, inputs, nil, now)
	if len(gaps) > 0 {
		log.WithField("gaps", gaps).Warn("🧩 [SETTLEMENT] Participants without portfolio receive no result")
	}

	table, err := ParsePayoutTable(t.PayoutTable)
	if err != nil {
		return nil, err
	}
	payouts, err := ComputePayouts(table, t.PrizePool, rankings)
	if err != nil {
		return nil, err
	}

	results = BuildResults(t.ID, rankings, payouts, now)
	if err = e.Store.Commit(ctx, t, results, payouts, now); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"participants": len(results), "paid": len(payouts)}).
		Info("✅ [SETTLEMENT] Tournament settled")

	if e.Hub != nil {
		e.Hub.Publish(Event{
			Type:         EventSettled,
			TournamentID: t.ID,
			Payload:      messagePayload(fmt.Sprintf("Tournament %s settled: %d results, %d rewards", t.Name, len(results), len(payouts))),
			At:           now,
		})
	}
	e.archive(ctx, t, results, now)
	return results, nil
}

func messagePayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// BuildResults turns a final ranking and its payouts into immutable result rows.
func BuildResults(tournamentID string, rankings []models.TournamentRanking, payouts []Payout, now time.Time) []models.TournamentResult {
	byUser := make(map[string]Payout, len(payouts))
	for _, p := range payouts {
		byUser[p.UserID] = p
	}
	results := make([]models.TournamentResult, len(rankings))
	for i, r := range rankings {
		res := models.TournamentResult{
			ID:               uuid.NewString(),
			TournamentID:     tournamentID,
			UserID:           r.UserID,
			UserName:         r.UserName,
			Rank:             r.Rank,
			ReturnPercentage: r.TotalReturnPercent,
			FinalAssets:      r.TotalAssets,
			TotalTrades:      r.TotalTrades,
			WinRate:          r.WinRate,
			CreatedAt:        now,
		}
		if p, ok := byUser[r.UserID]; ok {
			amount := p.Amount
			res.RewardAmount = &amount
			res.RewardType = p.Type
			res.RewardDescription = p.Description
		}
		results[i] = res
	}
	return results
}

func (e *SettlementEngine) archive(ctx context.Context, t *models.Tournament, results []models.TournamentResult, now time.Time) {
	if e.Archiver == nil {
		return
	}
	body, err := json.Marshal(SettlementReport{
		TournamentID: t.ID,
		Name:         t.Name,
		PrizePool:    t.PrizePool.StringFixed(2),
		SettledAt:    now,
		Results:      results,
	})
	if err != nil {
		logrus.WithError(err).Warn("⚠️ [SETTLEMENT] Failed to encode report")
		return
	}
	key := fmt.Sprintf("settlements/%s-%s.json", slug.Make(t.Name), t.ID)
	url, err := e.Archiver.Archive(ctx, key, body, "application/json")
	if err != nil {
		logrus.WithError(err).WithField("tournament_id", t.ID).Warn("⚠️ [SETTLEMENT] Report upload failed, results are unaffected")
		return
	}
	if err := e.Store.SetReportURL(ctx, t.ID, url); err != nil {
		logrus.WithError(err).WithField("tournament_id", t.ID).Warn("⚠️ [SETTLEMENT] Failed to record report URL")
	}
}

// SettleEndpoint handles POST /tournaments/:id/settle (admin).
func (e *SettlementEngine) SettleEndpoint(c *fiber.Ctx) error {
	results, err := e.Settle(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tournament_id": c.Params("id"), "results": results})
}

// GetResultsEndpoint returns the frozen results, ordered by rank.
func (e *SettlementEngine) GetResultsEndpoint(c *fiber.Ctx) error {
	results, err := e.Store.Results(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if len(results) == 0 {
		return respondError(c, NotFound("tournament has no settlement results yet"))
	}
	return c.JSON(results)
}

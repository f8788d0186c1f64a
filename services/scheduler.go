// services/scheduler.go
package services

import (
	"context"
	"errors"

	"invest-tournament-system/config"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Jobs groups the services the background scheduler drives.
type Jobs struct {
	Rankings    *RankingService
	Tournaments *TournamentService
	Settlement  *SettlementEngine
	Performance *PerformanceService
	Eligibility *EligibilityService
}

// settleDue settles every tournament waiting for it and returns how many settled.
func settleDue(ctx context.Context, tournaments *TournamentService, engine *SettlementEngine) int {
	ids, err := tournaments.SettlementDue(ctx)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ [Scheduler] Settlement scan failed")
		return 0
	}
	settled := 0
	for _, id := range ids {
		if _, err := engine.Settle(ctx, id); err != nil {
			log := logrus.WithError(err).WithField("tournament_id", id)
			if errors.Is(err, ErrAlreadySettling) {
				log.Debug("⏳ [Scheduler] Settlement already running")
				continue
			}
			log.Error("❌ [Scheduler] Auto-settlement failed")
			continue
		}
		settled++
	}
	return settled
}

// StartScheduler registers the periodic jobs and starts them. ctx bounds every run.
func StartScheduler(ctx context.Context, cfg *config.Config, jobs Jobs) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	singleton := gocron.WithSingletonMode(gocron.LimitModeReschedule)

	// Live rankings of every ongoing tournament.
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.RankingInterval),
		gocron.NewTask(func() {
			if err := jobs.Rankings.RecomputeActive(ctx); err != nil {
				logrus.WithError(err).Warn("⚠️ [Scheduler] Ranking refresh failed")
			}
		}),
		gocron.WithName("rankings"), singleton,
	); err != nil {
		return nil, err
	}

	// Calendar-driven status moves, then settlement of whatever ended.
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.StatusInterval),
		gocron.NewTask(func() {
			if _, err := jobs.Tournaments.AdvanceStatuses(ctx); err != nil {
				logrus.WithError(err).Warn("⚠️ [Scheduler] Status check failed")
			}
			if cfg.AutoSettle {
				settleDue(ctx, jobs.Tournaments, jobs.Settlement)
			}
		}),
		gocron.WithName("status"), singleton,
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.SnapshotHour), 0, 0))),
		gocron.NewTask(func() {
			if err := jobs.Performance.TakeDailySnapshots(ctx); err != nil {
				logrus.WithError(err).Warn("⚠️ [Scheduler] Daily snapshots failed")
			}
		}),
		gocron.WithName("snapshots"), singleton,
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.Eligibility.EvaluationHour), 0, 0))),
		gocron.NewTask(func() {
			if _, _, err := jobs.Eligibility.EvaluateAll(ctx); err != nil {
				logrus.WithError(err).Warn("⚠️ [Scheduler] Eligibility evaluation failed")
			}
		}),
		gocron.WithName("eligibility"), singleton,
	); err != nil {
		return nil, err
	}

	sched.Start()
	logrus.WithFields(logrus.Fields{
		"rankings":         cfg.RankingInterval.String(),
		"status":           cfg.StatusInterval.String(),
		"snapshot_hour":    cfg.SnapshotHour,
		"eligibility_hour": cfg.Eligibility.EvaluationHour,
	}).Info("⏰ [Scheduler] Started")
	return sched, nil
}

package services

import (
	"fmt"
	"math"
	"time"

	"invest-tournament-system/config"
	"invest-tournament-system/models"
)

// AuthorActivity is the windowed input for one author's evaluation.
type AuthorActivity struct {
	ArticlesInWindow      int
	UniqueReadersInWindow int
	ActiveViolations      int
	WalletConfigured      bool
}

// IsCompleteRead reports whether a session counts as a full read.
func IsCompleteRead(scrollPercentage float64, cfg config.EligibilityConfig) bool {
	return scrollPercentage >= cfg.CompleteReadScroll
}

func progressFor(cond models.EligibilityCondition, current, required int, met bool) models.ConditionProgress {
	pct := 100.0
	if required > 0 {
		pct = math.Min(100, float64(current)/float64(required)*100)
	}
	return models.ConditionProgress{
		Condition: cond,
		Current:   current,
		Required:  required,
		Met:       met,
		Percent:   math.Round(pct*100) / 100,
	}
}

// EvaluateEligibility scores an author against the configured thresholds.
func EvaluateEligibility(authorID string, a AuthorActivity, cfg config.EligibilityConfig, now time.Time) models.AuthorEligibility {
	noViolations := a.ActiveViolations == 0
	wallet := 0
	if a.WalletConfigured {
		wallet = 1
	}
	clean := 0
	if noViolations {
		clean = 1
	}

	progress := []models.ConditionProgress{
		progressFor(models.ConditionArticles90Days, a.ArticlesInWindow, cfg.MinArticles, a.ArticlesInWindow >= cfg.MinArticles),
		progressFor(models.ConditionUniqueReaders30Days, a.UniqueReadersInWindow, cfg.MinUniqueReaders, a.UniqueReadersInWindow >= cfg.MinUniqueReaders),
		progressFor(models.ConditionNoViolations, clean, 1, noViolations),
		progressFor(models.ConditionWalletSetup, wallet, 1, a.WalletConfigured),
	}

	met := 0
	for _, p := range progress {
		if p.Met {
			met++
		}
	}
	eligible := met == len(progress)

	return models.AuthorEligibility{
		AuthorID:         authorID,
		IsEligible:       eligible,
		Score:            math.Round(float64(met)/float64(len(progress))*10000) / 100,
		Progress:         progress,
		Notifications:    eligibilityNotifications(eligible, a, cfg),
		LastEvaluatedAt:  now,
		NextEvaluationAt: nextDailyRun(now, cfg.EvaluationHour),
	}
}

func eligibilityNotifications(eligible bool, a AuthorActivity, cfg config.EligibilityConfig) []models.EligibilityNotification {
	var out []models.EligibilityNotification
	if eligible {
		out = append(out, models.EligibilityNotification{
			Type:    models.NotificationQualified,
			Title:   "You now qualify for revenue sharing",
			Message: "All conditions are met; your articles now earn a share of rewards.",
		})
	} else {
		out = append(out, models.EligibilityNotification{
			Type:    models.NotificationDisqualified,
			Title:   "Revenue sharing not yet unlocked",
			Message: "Complete the remaining conditions to qualify.",
		})
	}

	if a.ArticlesInWindow < cfg.MinArticles {
		out = append(out, models.EligibilityNotification{
			Type:      models.NotificationWarning,
			Condition: models.ConditionArticles90Days,
			Title:     "Publish an article",
			Message:   fmt.Sprintf("Publish at least %d public article(s) within %d days.", cfg.MinArticles, cfg.ArticleWindowDays),
			Current:   a.ArticlesInWindow,
			Required:  cfg.MinArticles,
		})
	}

	if a.UniqueReadersInWindow < cfg.MinUniqueReaders {
		remaining := cfg.MinUniqueReaders - a.UniqueReadersInWindow
		n := models.EligibilityNotification{
			Type:      models.NotificationWarning,
			Condition: models.ConditionUniqueReaders30Days,
			Title:     "More readers needed",
			Message:   fmt.Sprintf("%d more unique reader(s) needed to meet the condition.", remaining),
			Current:   a.UniqueReadersInWindow,
			Required:  cfg.MinUniqueReaders,
		}
		if remaining <= cfg.NearThresholdReader {
			n.Type = models.NotificationNearThreshold
			n.Title = "Almost at the reader threshold"
		}
		out = append(out, n)
	}

	if a.ActiveViolations > 0 {
		out = append(out, models.EligibilityNotification{
			Type:      models.NotificationWarning,
			Condition: models.ConditionNoViolations,
			Title:     "Violation on record",
			Message:   "Contact support to resolve the open violation.",
			Required:  1,
		})
	}

	if !a.WalletConfigured {
		out = append(out, models.EligibilityNotification{
			Type:      models.NotificationWarning,
			Condition: models.ConditionWalletSetup,
			Title:     "Set up your wallet",
			Message:   "Finish wallet setup to receive revenue payouts.",
			Required:  1,
		})
	}
	return out
}

// nextDailyRun returns the next occurrence of hour:00 after now, in now's location.
func nextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

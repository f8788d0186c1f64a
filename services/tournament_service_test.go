package services

import (
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/stretchr/testify/assert"
)

func TestTransitionAllowed(t *testing.T) {
	allowed := [][2]models.TournamentStatus{
		{models.TournamentStatusUpcoming, models.TournamentStatusEnrolling},
		{models.TournamentStatusUpcoming, models.TournamentStatusOngoing},
		{models.TournamentStatusEnrolling, models.TournamentStatusOngoing},
		{models.TournamentStatusOngoing, models.TournamentStatusEnded},
		{models.TournamentStatusOngoing, models.TournamentStatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, TransitionAllowed(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]models.TournamentStatus{
		{models.TournamentStatusEnded, models.TournamentStatusSettled},
		{models.TournamentStatusEnded, models.TournamentStatusOngoing},
		{models.TournamentStatusOngoing, models.TournamentStatusSettling},
		{models.TournamentStatusSettled, models.TournamentStatusEnded},
		{models.TournamentStatusCancelled, models.TournamentStatusOngoing},
		{models.TournamentStatusOngoing, models.TournamentStatusUpcoming},
	}
	for _, tr := range denied {
		assert.False(t, TransitionAllowed(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestPlannedStatus(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	tm := func(status models.TournamentStatus) *models.Tournament {
		return &models.Tournament{Status: status, StartDate: start, EndDate: end}
	}

	tests := []struct {
		name   string
		status models.TournamentStatus
		now    time.Time
		want   models.TournamentStatus
	}{
		{"far ahead", models.TournamentStatusUpcoming, start.AddDate(0, 0, -30), models.TournamentStatusUpcoming},
		{"enrollment window", models.TournamentStatusUpcoming, start.AddDate(0, 0, -3), models.TournamentStatusEnrolling},
		{"started", models.TournamentStatusEnrolling, start, models.TournamentStatusOngoing},
		{"skips enrolling", models.TournamentStatusUpcoming, start.Add(time.Hour), models.TournamentStatusOngoing},
		{"ended", models.TournamentStatusOngoing, end, models.TournamentStatusEnded},
		{"manual early start kept", models.TournamentStatusOngoing, start.AddDate(0, 0, -3), models.TournamentStatusOngoing},
		{"cancelled untouched", models.TournamentStatusCancelled, end.Add(time.Hour), models.TournamentStatusCancelled},
		{"settled untouched", models.TournamentStatusSettled, end.Add(time.Hour), models.TournamentStatusSettled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PlannedStatus(tm(tc.status), tc.now))
		})
	}
}

func TestNormalizeStatusAliases(t *testing.T) {
	assert.Equal(t, models.TournamentStatusOngoing, models.NormalizeStatus("active"))
	assert.Equal(t, models.TournamentStatusEnded, models.NormalizeStatus("finished"))
	assert.Equal(t, models.TournamentStatusSettled, models.NormalizeStatus("settled"))
}

func TestPastTense(t *testing.T) {
	assert.Equal(t, "bought", pastTense(models.TradeActionBuy))
	assert.Equal(t, "sold", pastTense(models.TradeActionSell))
}

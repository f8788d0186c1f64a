package services

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the tournament schema. A single
// connection keeps transactions serialised the way row locks do in postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "invest.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentPortfolio{},
		&models.TournamentHolding{},
		&models.TournamentTrade{},
		&models.TournamentRanking{},
		&models.TournamentResult{},
		&models.TournamentActivity{},
		&models.TokenWallet{},
		&models.WalletTransaction{},
		&models.InvestorStats{},
		&models.UserAchievement{},
		&models.UserProfile{},
		&models.FriendRequest{},
		&models.Friendship{},
	))
	return db
}

var initialBalance = decimal.NewFromInt(1_000_000)

func seedTournament(t *testing.T, db *gorm.DB, name string, status models.TournamentStatus, end time.Time) *models.Tournament {
	t.Helper()
	tm := models.Tournament{
		ID:             uuid.NewString(),
		Name:           name,
		Status:         status,
		StartDate:      end.AddDate(0, -1, 0),
		EndDate:        end,
		InitialBalance: initialBalance,
		PrizePool:      decimal.NewFromInt(10000),
	}
	require.NoError(t, db.Create(&tm).Error)
	return &tm
}

// seedMember enrolls userID with an all-cash portfolio worth assets.
func seedMember(t *testing.T, db *gorm.DB, tm *models.Tournament, userID, assets string, joined time.Time) *models.TournamentPortfolio {
	t.Helper()
	total := decimal.RequireFromString(assets)
	require.NoError(t, db.Create(&models.TournamentParticipant{
		ID:           uuid.NewString(),
		TournamentID: tm.ID,
		UserID:       userID,
		UserName:     userID,
		Status:       models.ParticipantStatusActive,
		JoinedAt:     joined,
	}).Error)
	p := models.TournamentPortfolio{
		ID:               uuid.NewString(),
		TournamentID:     tm.ID,
		UserID:           userID,
		UserName:         userID,
		CashBalance:      total,
		TotalAssets:      total,
		InitialBalance:   initialBalance,
		TotalReturn:      total.Sub(initialBalance),
		ReturnPercentage: total.Sub(initialBalance).Div(initialBalance).Mul(hundred),
		PeakAssets:       total,
		LastUpdated:      joined,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

// ledgerFault fails the nth wallet ledger insert while armed.
type ledgerFault struct {
	nth    int
	seen   int
	armed  atomic.Bool
	failed atomic.Bool
}

func failLedgerWrite(t *testing.T, db *gorm.DB, nth int) *ledgerFault {
	t.Helper()
	f := &ledgerFault{nth: nth}
	f.armed.Store(true)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:ledger_fault", func(tx *gorm.DB) {
		if tx.Statement.Table != "wallet_transactions" || !f.armed.Load() {
			return
		}
		f.seen++
		if f.seen == f.nth {
			f.failed.Store(true)
			_ = tx.AddError(errors.New("ledger unavailable"))
		}
	}))
	return f
}

package workers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"invest-tournament-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteWallet is one entry of the sync service's wallet feed.
type RemoteWallet struct {
	UserID    string    `json:"user_id"`
	Address   string    `json:"address"`
	Chain     string    `json:"chain"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WalletSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewWalletSyncClient(db *gorm.DB, baseURL, token string) *WalletSyncClient {
	return &WalletSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *WalletSyncClient) GetChangedWallets(ctx context.Context, since time.Time) ([]RemoteWallet, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	u = u.JoinPath("/api/v1/public/wallets")
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	var response struct {
		Wallets []RemoteWallet `json:"wallets"`
	}
	if err := getJSON(ctx, c.HTTPClient, u.String(), c.Token, &response); err != nil {
		return nil, err
	}
	return response.Wallets, nil
}

// Upsert mirrors address, chain and status. Balance belongs to this service and is never
// overwritten; a newly seen wallet starts at zero.
func (c *WalletSyncClient) Upsert(ctx context.Context, wallets []RemoteWallet, now time.Time) (int, error) {
	rows := make([]models.TokenWallet, 0, len(wallets))
	for _, w := range wallets {
		if w.UserID == "" {
			continue
		}
		var address *string
		if w.Address != "" {
			addr := w.Address
			address = &addr
		}
		synced := now
		rows = append(rows, models.TokenWallet{
			ID:       uuid.NewString(),
			UserID:   w.UserID,
			Address:  address,
			Chain:    w.Chain,
			Balance:  decimal.Zero,
			IsActive: w.IsActive,
			SyncedAt: &synced,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "chain", "is_active", "synced_at", "updated_at"}),
	}).Create(&rows).Error
	return len(rows), err
}

func PollWallets(ctx context.Context, client *WalletSyncClient, pollInterval time.Duration) {
	logrus.Info("🔁 Starting wallet polling (DB-backed)…")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("⏹️ Wallet polling stopped")
			return
		case <-ticker.C:
			started := time.Now().UTC()
			wallets, err := client.GetChangedWallets(ctx, lastSyncTime)
			if err != nil {
				logrus.WithError(err).Error("❌ [WALLET SYNC] Poll failed")
				continue
			}
			if len(wallets) == 0 {
				continue
			}
			n, err := client.Upsert(ctx, wallets, started)
			if err != nil {
				// Same window is retried next tick.
				logrus.WithError(err).WithField("count", len(wallets)).Error("❌ [WALLET SYNC] Upsert failed")
				continue
			}
			lastSyncTime = started
			logrus.WithField("count", n).Info("✅ [WALLET SYNC] Wallets mirrored")
		}
	}
}

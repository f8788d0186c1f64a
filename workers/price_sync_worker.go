package workers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"invest-tournament-system/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteQuote is one entry of the market data service's quote feed.
type RemoteQuote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	QuotedAt      time.Time       `json:"quoted_at"`
}

// QuoteCache receives every quote the worker stores.
type QuoteCache interface {
	Remember(quotes ...models.StockQuote)
}

type PriceSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
	Cache      QuoteCache
}

func NewPriceSyncClient(db *gorm.DB, cache QuoteCache, baseURL, token string) *PriceSyncClient {
	return &PriceSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		Cache:      cache,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// HeldSymbols lists every symbol currently held in some portfolio.
func (c *PriceSyncClient) HeldSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := c.DB.WithContext(ctx).Model(&models.TournamentHolding{}).Distinct().Pluck("symbol", &symbols).Error
	return symbols, err
}

func (c *PriceSyncClient) FetchQuotes(ctx context.Context, symbols []string) ([]RemoteQuote, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse market data URL: %w", err)
	}
	u = u.JoinPath("/api/v1/quotes")
	if len(symbols) > 0 {
		q := u.Query()
		q.Set("symbols", strings.Join(symbols, ","))
		u.RawQuery = q.Encode()
	}

	var response struct {
		Quotes []RemoteQuote `json:"quotes"`
	}
	if err := getJSON(ctx, c.HTTPClient, u.String(), c.Token, &response); err != nil {
		return nil, err
	}
	return response.Quotes, nil
}

// Store upserts valid quotes by symbol and hands them to the cache. Non-positive prices are dropped.
func (c *PriceSyncClient) Store(ctx context.Context, remote []RemoteQuote, now time.Time) ([]models.StockQuote, error) {
	quotes := make([]models.StockQuote, 0, len(remote))
	for _, r := range remote {
		if r.Symbol == "" || !r.Price.IsPositive() {
			continue
		}
		quotedAt := r.QuotedAt
		if quotedAt.IsZero() {
			quotedAt = now
		}
		quotes = append(quotes, models.StockQuote{
			Symbol:        strings.ToUpper(strings.TrimSpace(r.Symbol)),
			Name:          r.Name,
			Price:         r.Price,
			Change:        r.Change,
			ChangePercent: r.ChangePercent,
			QuotedAt:      quotedAt,
		})
	}
	if len(quotes) == 0 {
		return nil, nil
	}
	if err := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "price", "change", "change_percent", "quoted_at", "updated_at"}),
	}).Create(&quotes).Error; err != nil {
		return nil, err
	}
	if c.Cache != nil {
		c.Cache.Remember(quotes...)
	}
	return quotes, nil
}

func (c *PriceSyncClient) syncOnce(ctx context.Context) error {
	symbols, err := c.HeldSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to list held symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}
	remote, err := c.FetchQuotes(ctx, symbols)
	if err != nil {
		return err
	}
	stored, err := c.Store(ctx, remote, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert quotes: %w", err)
	}
	logrus.WithFields(logrus.Fields{"requested": len(symbols), "stored": len(stored)}).Debug("💹 [PRICE SYNC] Quotes refreshed")
	return nil
}

func PollPrices(ctx context.Context, client *PriceSyncClient, pollInterval time.Duration) {
	logrus.WithField("interval", pollInterval.String()).Info("🔁 Starting market price polling…")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := client.syncOnce(ctx); err != nil {
			logrus.WithError(err).Warn("⚠️ [PRICE SYNC] Poll failed")
		}
		select {
		case <-ctx.Done():
			logrus.Info("⏹️ Market price polling stopped")
			return
		case <-ticker.C:
		}
	}
}

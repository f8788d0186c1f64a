package services

import (
	"context"
	"time"

	"invest-tournament-system/models"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PriceSource supplies the latest known prices for a set of symbols.
type PriceSource interface {
	Prices(ctx context.Context, symbols []string) (PriceMap, error)
}

// PriceFeed serves quotes from an in-memory LRU in front of the stock_quotes table.
// Quotes older than staleAfter are left out so valuation falls back and flags them.
type PriceFeed struct {
	DB         *gorm.DB
	cache      *lru.Cache
	staleAfter time.Duration
	now        func() time.Time
}

func NewPriceFeed(db *gorm.DB, size int, staleAfter time.Duration) (*PriceFeed, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &PriceFeed{DB: db, cache: c, staleAfter: staleAfter, now: time.Now}, nil
}

// Remember stores fresh quotes, typically right after the price worker upserts them.
func (f *PriceFeed) Remember(quotes ...models.StockQuote) {
	for _, q := range quotes {
		f.cache.Add(q.Symbol, q)
	}
}

// Quote returns the cached or stored quote for one symbol.
func (f *PriceFeed) Quote(ctx context.Context, symbol string) (models.StockQuote, bool, error) {
	if v, ok := f.cache.Get(symbol); ok {
		return v.(models.StockQuote), true, nil
	}
	var q models.StockQuote
	err := f.DB.WithContext(ctx).Where("symbol = ?", symbol).Limit(1).Find(&q).Error
	if err != nil {
		return q, false, Transient(err, "failed to load quote for %s", symbol)
	}
	if q.Symbol == "" {
		return q, false, nil
	}
	f.cache.Add(q.Symbol, q)
	return q, true, nil
}

func (f *PriceFeed) fresh(q models.StockQuote) bool {
	return f.staleAfter <= 0 || f.now().Sub(q.QuotedAt) <= f.staleAfter
}

func (f *PriceFeed) Prices(ctx context.Context, symbols []string) (PriceMap, error) {
	prices := make(PriceMap, len(symbols))
	var missing []string
	for _, s := range symbols {
		if v, ok := f.cache.Get(s); ok {
			if q := v.(models.StockQuote); f.fresh(q) {
				prices[s] = q.Price
				continue
			}
		}
		missing = append(missing, s)
	}
	if len(missing) == 0 {
		return prices, nil
	}

	var quotes []models.StockQuote
	if err := f.DB.WithContext(ctx).Where("symbol IN ?", missing).Find(&quotes).Error; err != nil {
		return nil, Transient(err, "failed to load quotes")
	}
	for _, q := range quotes {
		f.cache.Add(q.Symbol, q)
		if f.fresh(q) {
			prices[q.Symbol] = q.Price
		}
	}
	if stale := len(symbols) - len(prices); stale > 0 {
		logrus.WithField("symbols", len(symbols)).Debugf("⏳ [PRICES] %d symbol(s) without a fresh quote", stale)
	}
	return prices, nil
}

// StaticPrices is a fixed PriceSource, handy for tests and replays.
type StaticPrices PriceMap

func (s StaticPrices) Prices(_ context.Context, symbols []string) (PriceMap, error) {
	out := make(PriceMap, len(symbols))
	for _, sym := range symbols {
		if p, ok := s[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

package services

import (
	"context"
	"testing"
	"time"

	"invest-tournament-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticPrices(t *testing.T) {
	src := StaticPrices{"2330": d("600"), "2317": d("100")}

	prices, err := src.Prices(context.Background(), []string{"2330", "0050"})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.True(t, prices["2330"].Equal(d("600")))
	_, ok := prices["0050"]
	assert.False(t, ok)
}

func TestPriceFeedServesFreshCachedQuotes(t *testing.T) {
	feed, err := NewPriceFeed(nil, 16, time.Minute)
	require.NoError(t, err)
	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	feed.now = func() time.Time { return now }

	feed.Remember(models.StockQuote{Symbol: "2330", Price: d("600"), QuotedAt: now.Add(-30 * time.Second)})

	prices, err := feed.Prices(context.Background(), []string{"2330"})
	require.NoError(t, err)
	assert.True(t, prices["2330"].Equal(d("600")))

	q, ok, err := feed.Quote(context.Background(), "2330")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, q.Price.Equal(d("600")))
}

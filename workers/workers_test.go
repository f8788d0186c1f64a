package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRemoteProfileToModel(t *testing.T) {
	p := RemoteProfile{
		ExternalID:        "ext-1",
		Username:          "zoe_trades",
		FirstName:         strPtr("Zoë"),
		LastName:          strPtr("Chen"),
		ProfilePictureURL: strPtr("https://cdn.example/zoe.png"),
	}

	m := p.ToModel()
	assert.Equal(t, "ext-1", m.ExternalUserID)
	assert.Equal(t, "Zoë Chen", m.DisplayName)
	assert.Equal(t, "zoe_trades zoe chen", m.SearchKey)
	require.NotNil(t, m.AvatarURL)
	assert.Equal(t, "https://cdn.example/zoe.png", *m.AvatarURL)
}

func TestRemoteProfileDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "bob", RemoteProfile{Username: "bob"}.DisplayName())
	assert.Equal(t, "Bob", RemoteProfile{Username: "bob", FirstName: strPtr("Bob")}.DisplayName())
	assert.Equal(t, "Lee", RemoteProfile{Username: "bob", LastName: strPtr("Lee")}.DisplayName())
}

func TestGetJSONSendsServiceToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "2330,2317", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quotes":[{"symbol":"2330","price":"612.5","quoted_at":"2026-03-04T02:00:00Z"}]}`))
	}))
	defer srv.Close()

	client := NewPriceSyncClient(nil, nil, srv.URL, "tok")
	quotes, err := client.FetchQuotes(context.Background(), []string{"2330", "2317"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "2330", quotes[0].Symbol)
	assert.Equal(t, "612.5", quotes[0].Price.String())
	assert.True(t, quotes[0].QuotedAt.Equal(time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)))

	bad := NewPriceSyncClient(nil, nil, srv.URL, "wrong")
	_, err = bad.FetchQuotes(context.Background(), []string{"2330", "2317"})
	require.Error(t, err)
}

func TestWalletSyncUpsertSkipsEmptyBatch(t *testing.T) {
	c := NewWalletSyncClient(nil, "http://sync.local", "tok")
	n, err := c.Upsert(context.Background(), []RemoteWallet{{Address: "0xabc"}}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "entries without a user are ignored")
}

func TestPriceStoreDropsInvalidQuotes(t *testing.T) {
	c := NewPriceSyncClient(nil, nil, "http://market.local", "tok")
	stored, err := c.Store(context.Background(), []RemoteQuote{{Symbol: ""}, {Symbol: "2330"}}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

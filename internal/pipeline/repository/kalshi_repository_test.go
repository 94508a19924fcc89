package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trackers/internal/pipeline/config"
)

func TestKalshiRecessionMarketEndpointAndCache(t *testing.T) {
	var gotPath string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets":[{"ticker":"KXRECSSNBER-26","title":"Recession in 2026?","last_price":34,"status":"open"}]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{Kalshi: config.Kalshi{
		BaseURL:      srv.URL,
		SeriesTicker: "KXRECSSNBER",
		CacheTTL:     time.Minute,
	}}
	repo := NewKalshiRepository(cfg, newRepoTestLogger(t))

	market, err := repo.GetRecessionMarket(context.Background())
	require.NoError(t, err)
	require.NotNil(t, market)

	assert.Equal(t, "/trade-api/v2/markets", gotPath)
	assert.Equal(t, "KXRECSSNBER-26", market.Ticker)
	assert.Equal(t, 0.34, market.Probability)

	// A second read within the TTL is served from cache.
	again, err := repo.GetRecessionMarket(context.Background())
	require.NoError(t, err)
	assert.Same(t, market, again)
	assert.Equal(t, 1, calls)
}

func TestKalshiNoOpenMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets":[]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{Kalshi: config.Kalshi{BaseURL: srv.URL, SeriesTicker: "KXRECSSNBER"}}
	repo := NewKalshiRepository(cfg, newRepoTestLogger(t))

	_, err := repo.GetRecessionMarket(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

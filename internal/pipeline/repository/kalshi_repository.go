package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/pkg/logger"
)

// RecessionMarket is a prediction-market read on recession odds.
type RecessionMarket struct {
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	Probability float64   `json:"probability"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// KalshiRepository defines the interface for prediction-market lookups.
type KalshiRepository interface {
	GetRecessionMarket(ctx context.Context) (*RecessionMarket, error)
}

type kalshiMarketsResponse struct {
	Markets []struct {
		Ticker    string `json:"ticker"`
		Title     string `json:"title"`
		LastPrice int    `json:"last_price"`
		Status    string `json:"status"`
	} `json:"markets"`
}

type kalshiRepository struct {
	client *http.Client
	cfg    *config.Config
	logger *logger.Logger
	cache  *gocache.Cache
}

const kalshiCacheKey = "recession_market"

// NewKalshiRepository creates a KalshiRepository over the public trade API.
// Responses are cached in process for the configured TTL.
func NewKalshiRepository(cfg *config.Config, log *logger.Logger) KalshiRepository {
	ttl := cfg.Kalshi.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &kalshiRepository{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cfg:    cfg,
		logger: log,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

func (r *kalshiRepository) GetRecessionMarket(ctx context.Context) (*RecessionMarket, error) {
	if cached, found := r.cache.Get(kalshiCacheKey); found {
		return cached.(*RecessionMarket), nil
	}

	params := url.Values{}
	params.Set("series_ticker", r.cfg.Kalshi.SeriesTicker)
	params.Set("status", "open")

	endpoint := fmt.Sprintf("%s/trade-api/v2/markets?%s", r.cfg.Kalshi.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: Kalshi returned %d", ErrUnreachable, resp.StatusCode)
	}

	var payload kalshiMarketsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(payload.Markets) == 0 {
		return nil, fmt.Errorf("%w: no open markets for series %s", ErrEmptyResponse, r.cfg.Kalshi.SeriesTicker)
	}

	m := payload.Markets[0]
	market := &RecessionMarket{
		Ticker: m.Ticker,
		Title:  m.Title,
		// Kalshi prices are in cents; 34 means a 34% implied probability.
		Probability: float64(m.LastPrice) / 100.0,
		FetchedAt:   time.Now(),
	}
	r.cache.Set(kalshiCacheKey, market, gocache.DefaultExpiration)
	return market, nil
}

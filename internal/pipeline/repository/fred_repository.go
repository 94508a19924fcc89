package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/ratelimit"
)

// MarketDataRepository defines the interface for upstream data providers.
type MarketDataRepository interface {
	Fetch(ctx context.Context, seriesID string, since time.Time) ([]dto.Observation, error)
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredObservationsResponse struct {
	Observations []fredObservation `json:"observations"`
}

// FRED allows 120 requests per minute per key.
const fredRequestsPerMinute = 120

type fredRepository struct {
	client  *http.Client
	cfg     *config.Config
	limiter *ratelimit.TokenLimiter
	logger  *logger.Logger
}

// NewFREDRepository creates a MarketDataRepository backed by the FRED
// observations API.
func NewFREDRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	return &fredRepository{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cfg:     cfg,
		limiter: ratelimit.NewTokenLimiter(fredRequestsPerMinute),
		logger:  log,
	}
}

func (r *fredRepository) Fetch(ctx context.Context, seriesID string, since time.Time) ([]dto.Observation, error) {
	if r.cfg.FRED.APIKey == "" {
		return nil, fmt.Errorf("%w: FRED API key is not configured", ErrAuthFailed)
	}
	if err := r.limiter.Wait(ctx, 1); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", r.cfg.FRED.APIKey)
	params.Set("file_type", "json")
	params.Set("observation_start", since.Format("2006-01-02"))

	endpoint := fmt.Sprintf("%s/fred/series/observations?%s", r.cfg.FRED.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: FRED returned %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: FRED returned %d for series %s", ErrUnreachable, resp.StatusCode, seriesID)
	}

	var payload fredObservationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(payload.Observations) == 0 {
		return nil, fmt.Errorf("%w: no observations for series %s", ErrEmptyResponse, seriesID)
	}

	observations := make([]dto.Observation, 0, len(payload.Observations))
	for _, obs := range payload.Observations {
		// FRED encodes missing values as ".". Skip the row, keep going.
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			r.logger.Debug("Skipping FRED row with malformed date",
				logger.StringField("series_id", seriesID), logger.StringField("date", obs.Date))
			continue
		}
		observations = append(observations, dto.Observation{Date: date, Value: value})
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: all observations for series %s were unparseable", ErrEmptyResponse, seriesID)
	}
	return observations, nil
}

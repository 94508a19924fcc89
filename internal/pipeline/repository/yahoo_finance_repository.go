package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/pkg/logger"
)

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooFinanceRepository struct {
	client *http.Client
	cfg    *config.Config
	logger *logger.Logger
}

// NewYahooFinanceRepository creates a MarketDataRepository backed by the
// Yahoo Finance chart API. Series IDs are Yahoo tickers such as ^VIX.
func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	return &yahooFinanceRepository{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cfg:    cfg,
		logger: log,
	}
}

func (r *yahooFinanceRepository) Fetch(ctx context.Context, seriesID string, since time.Time) ([]dto.Observation, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", since.Unix()))
	params.Set("period2", fmt.Sprintf("%d", time.Now().Unix()))
	params.Set("interval", "1d")

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", r.cfg.YahooFinance.BaseURL, url.PathEscape(seriesID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: Yahoo Finance returned %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: Yahoo Finance returned %d for %s", ErrUnreachable, resp.StatusCode, seriesID)
	}

	var payload yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no chart result for %s", ErrEmptyResponse, seriesID)
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("%w: chart result for %s carries no quotes", ErrEmptyResponse, seriesID)
	}
	closes := result.Indicators.Quote[0].Close

	observations := make([]dto.Observation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC()
		observations = append(observations, dto.Observation{
			Date:  time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Value: *closes[i],
		})
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: all closes for %s were null", ErrEmptyResponse, seriesID)
	}
	return observations, nil
}

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/pkg/logger"
)

// SearchRepository defines the interface for the web-search provider.
type SearchRepository interface {
	Search(ctx context.Context, query dto.SearchQuery) (*dto.SearchResult, error)
}

// financialDomains limits financial_news searches to mainstream market press.
var financialDomains = []string{
	"bloomberg.com", "reuters.com", "cnbc.com", "wsj.com", "ft.com",
	"marketwatch.com", "finance.yahoo.com", "barrons.com",
}

// FinancialNewsDomains returns the include_domains list used for
// financial_news search requests.
func FinancialNewsDomains() []string {
	out := make([]string, len(financialDomains))
	copy(out, financialDomains)
	return out
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeAnswer  bool     `json:"include_answer"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

type tavilyRepository struct {
	client *http.Client
	cfg    *config.Config
	logger *logger.Logger
}

// NewTavilyRepository creates a SearchRepository backed by the Tavily API.
func NewTavilyRepository(cfg *config.Config, log *logger.Logger) SearchRepository {
	return &tavilyRepository{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cfg:    cfg,
		logger: log,
	}
}

func (r *tavilyRepository) Search(ctx context.Context, query dto.SearchQuery) (*dto.SearchResult, error) {
	if r.cfg.Tavily.APIKey == "" {
		return nil, fmt.Errorf("%w: Tavily API key is not configured", ErrAuthFailed)
	}

	depth := query.Depth
	if depth == "" {
		depth = dto.SearchDepthBasic
	}
	maxResults := query.MaxResults
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 10
	}

	payload := tavilyRequest{
		APIKey:         r.cfg.Tavily.APIKey,
		Query:          query.Query,
		SearchDepth:    depth,
		MaxResults:     maxResults,
		IncludeAnswer:  true,
		IncludeDomains: query.IncludeDomains,
		ExcludeDomains: query.ExcludeDomains,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := r.cfg.Tavily.BaseURL + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	r.logger.DebugContext(ctx, "Sending request to Tavily API", logger.StringField("query", query.Query))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: Tavily returned %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: Tavily returned %d", ErrUnreachable, resp.StatusCode)
	}

	var tavilyResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	out := &dto.SearchResult{Answer: tavilyResp.Answer}
	for _, item := range tavilyResp.Results {
		out.Results = append(out.Results, dto.SearchItem{
			Title:   item.Title,
			URL:     item.URL,
			Content: item.Content,
			Score:   item.Score,
		})
	}
	return out, nil
}

package config

import (
	"time"

	"signal-trackers/pkg/config"
)

// FRED holds the configuration for the FRED observations API.
type FRED struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// YahooFinance holds the configuration for the Yahoo Finance chart API.
type YahooFinance struct {
	BaseURL string `mapstructure:"base_url"`
}

// Kalshi holds the configuration for the Kalshi prediction-market API.
type Kalshi struct {
	BaseURL      string        `mapstructure:"base_url"`
	SeriesTicker string        `mapstructure:"series_ticker"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// OpenAI holds the configuration for the GPT-class back-end.
type OpenAI struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxTokens           int    `mapstructure:"max_tokens"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Anthropic holds the configuration for the Claude-class back-end.
type Anthropic struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxTokens           int    `mapstructure:"max_tokens"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI selects which model back-end funds the scheduled narratives.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Tavily holds the configuration for the web-search provider.
type Tavily struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// IndicatorSpec declares one tracked indicator and its provider mapping.
type IndicatorSpec struct {
	Key            string  `mapstructure:"key"`
	DisplayName    string  `mapstructure:"display_name"`
	Source         string  `mapstructure:"source"`
	SeriesID       string  `mapstructure:"series_id"`
	Unit           string  `mapstructure:"unit"`
	Category       string  `mapstructure:"category"`
	HigherIsStress bool    `mapstructure:"higher_is_stress"`
	LookbackDays   int     `mapstructure:"lookback_days"`
	ScaleFactor    float64 `mapstructure:"scale_factor"`
}

// Scheduler holds job cadence configuration.
type Scheduler struct {
	IngestCron     string        `mapstructure:"ingest_cron"`
	AlertCron      string        `mapstructure:"alert_cron"`
	BriefingCron   string        `mapstructure:"briefing_cron"`
	MisfireGrace   time.Duration `mapstructure:"misfire_grace"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
}

// Config holds the full configuration for the pipeline service.
type Config struct {
	App          config.App      `mapstructure:"app"`
	Logger       config.Logger   `mapstructure:"logger"`
	Database     config.Database `mapstructure:"database"`
	SMTP         config.SMTP     `mapstructure:"smtp"`
	Telegram     config.Telegram `mapstructure:"telegram"`
	FRED         FRED            `mapstructure:"fred"`
	YahooFinance YahooFinance    `mapstructure:"yahoo_finance"`
	Kalshi       Kalshi          `mapstructure:"kalshi"`
	OpenAI       OpenAI          `mapstructure:"openai"`
	Anthropic    Anthropic       `mapstructure:"anthropic"`
	AI           AI              `mapstructure:"ai"`
	Tavily       Tavily          `mapstructure:"tavily"`
	Scheduler    Scheduler       `mapstructure:"scheduler"`
	Indicators   []IndicatorSpec `mapstructure:"indicators"`
}

// Load loads the pipeline configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

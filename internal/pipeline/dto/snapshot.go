package dto

import (
	"time"
)

// Change is an N-day change of an indicator. Valid is false when the series
// is too short for the window.
type Change struct {
	Absolute float64 `json:"absolute"`
	Relative float64 `json:"relative"`
	Valid    bool    `json:"valid"`
}

// Metric is the derived view of one indicator at a logical instant.
type Metric struct {
	Key             string         `json:"key"`
	DisplayName     string         `json:"display_name"`
	Category        string         `json:"category"`
	Value           float64        `json:"value"`
	Date            time.Time      `json:"date"`
	Percentile      float64        `json:"percentile"`
	PercentileValid bool           `json:"percentile_valid"`
	Changes         map[int]Change `json:"changes"`
	MoverScore      float64        `json:"mover_score"`
	MoverValid      bool           `json:"mover_valid"`
}

// Snapshot maps indicator key to its derived metrics. Indicators without
// samples are omitted entirely.
type Snapshot map[string]Metric

// Observation is a single normalized (date, value) pair from a data provider.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// IngestResult reports the outcome of ingesting one indicator.
type IngestResult struct {
	IndicatorKey string `json:"indicator_key"`
	Status       string `json:"status"`
	SampleCount  int    `json:"sample_count"`
	Error        string `json:"error,omitempty"`
}

// Ingest result statuses.
const (
	IngestStatusSuccess = "SUCCESS"
	IngestStatusFailed  = "FAILED"
	IngestStatusSkipped = "SKIPPED"
)

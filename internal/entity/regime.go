package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Market regime labels, ordered from calmest to most stressed.
const (
	RegimeBull           = "Bull"
	RegimeNeutral        = "Neutral"
	RegimeBear           = "Bear"
	RegimeRecessionWatch = "Recession Watch"
)

// Classification methods.
const (
	RegimeMethodKMeans = "KMEANS"
	RegimeMethodRule   = "RULE"
)

// Confidence levels.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
	ConfidenceNone   = "none"
)

// RegimeRecord represents one daily market regime classification.
type RegimeRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Date        time.Time      `gorm:"type:date;uniqueIndex;not null" json:"date"`
	Regime      string         `gorm:"type:varchar(50);not null" json:"regime"`
	Confidence  string         `gorm:"type:varchar(20);not null" json:"confidence"`
	StressScore float64        `json:"stress_score"`
	Method      string         `gorm:"type:varchar(20);not null" json:"method"`
	Features    datatypes.JSON `gorm:"type:jsonb" json:"features"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the RegimeRecord model.
func (RegimeRecord) TableName() string {
	return "regime_records"
}

package entity

import (
	"time"

	"github.com/lib/pq"
)

// Detector types emitted by the alert engine.
const (
	AlertTypeVixSpike25           = "vix_spike_25"
	AlertTypeVixSpike30           = "vix_spike_30"
	AlertTypeCreditSpreadWidening = "credit_spread_widening"
	AlertTypeYieldCurveChange     = "yield_curve_change"
	AlertTypeBreadthDeterioration = "equity_breadth_deterioration"
	AlertTypeExtremePercentile    = "extreme_percentile"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert represents a triggered alert event for a user. Events are immutable
// once recorded; only the email-sent and read side-fields mutate.
type Alert struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"index;not null" json:"user_id"`
	AlertType         string         `gorm:"type:varchar(50);index;not null" json:"alert_type"`
	Title             string         `gorm:"type:varchar(255);not null" json:"title"`
	Message           string         `gorm:"type:text" json:"message"`
	Severity          string         `gorm:"type:varchar(20);not null" json:"severity"`
	MetricName        string         `gorm:"type:varchar(50)" json:"metric_name"`
	MetricValue       float64        `json:"metric_value"`
	Threshold         float64        `json:"threshold"`
	ExtremeIndicators pq.StringArray `gorm:"type:text[]" json:"extreme_indicators"`
	TriggeredAt       time.Time      `gorm:"index;not null" json:"triggered_at"`
	EmailSent         bool           `gorm:"default:false;index" json:"email_sent"`
	EmailSentAt       *time.Time     `json:"email_sent_at"`
	IsRead            bool           `gorm:"default:false" json:"is_read"`
	ReadAt            *time.Time     `json:"read_at"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Alert model.
func (Alert) TableName() string {
	return "alerts"
}

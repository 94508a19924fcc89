package entity

import (
	"time"
)

// Briefing frequencies.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
	FrequencyOff    = "off"
)

// User represents a registered briefing and alert recipient.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	AlertPreference *AlertPreference `gorm:"foreignKey:UserID" json:"alert_preference,omitempty"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// AlertPreference represents a user's alert toggles and briefing settings.
// Exactly one record exists per user.
type AlertPreference struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	AlertsEnabled              bool `gorm:"default:true" json:"alerts_enabled"`
	VixThreshold25             bool `gorm:"default:true" json:"vix_threshold_25"`
	VixThreshold30             bool `gorm:"default:true" json:"vix_threshold_30"`
	CreditSpreadThreshold50bp  bool `gorm:"default:true" json:"credit_spread_threshold_50bp"`
	YieldCurveInversion        bool `gorm:"default:true" json:"yield_curve_inversion"`
	EquityBreadthDeterioration bool `gorm:"default:true" json:"equity_breadth_deterioration"`
	ExtremePercentileEnabled   bool `gorm:"default:true" json:"extreme_percentile_enabled"`

	DailyBriefingEnabled bool       `gorm:"default:true" json:"daily_briefing_enabled"`
	BriefingFrequency    string     `gorm:"type:varchar(20);default:'daily'" json:"briefing_frequency"`
	PreferredHour        int        `gorm:"default:7" json:"preferred_hour"`
	TimeZone             string     `gorm:"type:varchar(64);default:'America/New_York'" json:"time_zone"`
	IncludePortfolio     bool       `gorm:"default:false" json:"include_portfolio"`
	LastBriefingSentDate *time.Time `gorm:"type:date" json:"last_briefing_sent_date"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the AlertPreference model.
func (AlertPreference) TableName() string {
	return "alert_preferences"
}

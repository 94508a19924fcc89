package entity

import (
	"time"
)

// Indicator source providers.
const (
	IndicatorSourceFRED    = "FRED"
	IndicatorSourceYahoo   = "YAHOO"
	IndicatorSourceDerived = "DERIVED"
)

// Indicator categories.
const (
	CategoryCredit     = "credit"
	CategoryRates      = "rates"
	CategoryEquities   = "equities"
	CategoryDollar     = "dollar"
	CategoryCrypto     = "crypto"
	CategorySafeHavens = "safe_havens"
)

// Indicator represents a tracked macroeconomic time series.
type Indicator struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Key            string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	DisplayName    string    `gorm:"type:varchar(255);not null" json:"display_name"`
	Source         string    `gorm:"type:varchar(20);not null" json:"source"`
	SeriesID       string    `gorm:"type:varchar(50)" json:"series_id"`
	Unit           string    `gorm:"type:varchar(50)" json:"unit"`
	Category       string    `gorm:"type:varchar(20);not null" json:"category"`
	HigherIsStress bool      `gorm:"default:true" json:"higher_is_stress"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Indicator model.
func (Indicator) TableName() string {
	return "indicators"
}

// IndicatorSample represents a single dated observation of an indicator.
type IndicatorSample struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	IndicatorID uint      `gorm:"uniqueIndex:idx_indicator_date;not null" json:"indicator_id"`
	Date        time.Time `gorm:"type:date;uniqueIndex:idx_indicator_date;not null" json:"date"`
	Value       float64   `gorm:"not null" json:"value"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Indicator Indicator `gorm:"foreignKey:IndicatorID" json:"-"`
}

// TableName specifies the table name for the IndicatorSample model.
func (IndicatorSample) TableName() string {
	return "indicator_samples"
}

package entity

import (
	"time"
)

// PortfolioAllocation represents the model allocation recommended for a regime.
type PortfolioAllocation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Regime      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"regime"`
	Equities    float64   `json:"equities"`
	Bonds       float64   `json:"bonds"`
	Commodities float64   `json:"commodities"`
	Cash        float64   `json:"cash"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the PortfolioAllocation model.
func (PortfolioAllocation) TableName() string {
	return "portfolio_allocations"
}

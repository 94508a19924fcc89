package entity

import (
	"time"
)

// AISummary represents a generated daily market summary.
type AISummary struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Date        time.Time `gorm:"type:date;uniqueIndex;not null" json:"date"`
	Summary     string    `gorm:"type:text;not null" json:"summary"`
	Provider    string    `gorm:"type:varchar(50)" json:"provider"`
	Model       string    `gorm:"type:varchar(100)" json:"model"`
	Iterations  int       `json:"iterations"`
	UsedSearch  bool      `gorm:"default:false" json:"used_search"`
	NewsContext string    `gorm:"type:text" json:"news_context"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the AISummary model.
func (AISummary) TableName() string {
	return "ai_summaries"
}

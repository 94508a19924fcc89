package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signal-trackers/internal/entity"
)

// AISummaryRepository defines the interface for daily narrative storage.
type AISummaryRepository interface {
	Upsert(ctx context.Context, summary *entity.AISummary) error
	GetByDate(ctx context.Context, date time.Time) (*entity.AISummary, error)
	GetRecent(ctx context.Context, limit int) ([]entity.AISummary, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type aiSummaryRepository struct {
	db *gorm.DB
}

// NewAISummaryRepository creates a new AISummaryRepository.
func NewAISummaryRepository(db *gorm.DB) AISummaryRepository {
	return &aiSummaryRepository{db: db}
}

// Upsert writes the summary for its date; a repeat for the same date
// replaces the prior narrative.
func (r *aiSummaryRepository) Upsert(ctx context.Context, summary *entity.AISummary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "provider", "model", "iterations", "used_search", "news_context", "updated_at"}),
	}).Create(summary).Error
}

func (r *aiSummaryRepository) GetByDate(ctx context.Context, date time.Time) (*entity.AISummary, error) {
	var summary entity.AISummary
	err := r.db.WithContext(ctx).Where("date = ?", date).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *aiSummaryRepository) GetRecent(ctx context.Context, limit int) ([]entity.AISummary, error) {
	var summaries []entity.AISummary
	if err := r.db.WithContext(ctx).Order("date desc").Limit(limit).Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *aiSummaryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("date < ?", cutoff).Delete(&entity.AISummary{})
	return result.RowsAffected, result.Error
}

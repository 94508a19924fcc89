package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/dto"
)

// IndicatorRepository defines the interface for indicator and sample storage.
type IndicatorRepository interface {
	GetAll(ctx context.Context) ([]entity.Indicator, error)
	GetByKey(ctx context.Context, key string) (*entity.Indicator, error)
	Upsert(ctx context.Context, indicator *entity.Indicator) error
	UpsertSamples(ctx context.Context, indicatorID uint, observations []dto.Observation) (int, error)
	GetSamples(ctx context.Context, indicatorID uint, since time.Time) ([]entity.IndicatorSample, error)
	GetLatestSample(ctx context.Context, indicatorID uint) (*entity.IndicatorSample, error)
}

type indicatorRepository struct {
	db *gorm.DB
}

// NewIndicatorRepository creates a new IndicatorRepository.
func NewIndicatorRepository(db *gorm.DB) IndicatorRepository {
	return &indicatorRepository{db: db}
}

func (r *indicatorRepository) GetAll(ctx context.Context) ([]entity.Indicator, error) {
	var indicators []entity.Indicator
	if err := r.db.WithContext(ctx).Order("key asc").Find(&indicators).Error; err != nil {
		return nil, err
	}
	return indicators, nil
}

func (r *indicatorRepository) GetByKey(ctx context.Context, key string) (*entity.Indicator, error) {
	var indicator entity.Indicator
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&indicator).Error; err != nil {
		return nil, err
	}
	return &indicator, nil
}

// Upsert creates the indicator or refreshes its metadata by key.
func (r *indicatorRepository) Upsert(ctx context.Context, indicator *entity.Indicator) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "source", "series_id", "unit", "category", "higher_is_stress", "updated_at"}),
	}).Create(indicator).Error
}

// UpsertSamples appends observations idempotently on (indicator, date). A
// repeated date replaces the prior value. All rows commit in one transaction.
func (r *indicatorRepository) UpsertSamples(ctx context.Context, indicatorID uint, observations []dto.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	samples := make([]entity.IndicatorSample, len(observations))
	for i, obs := range observations {
		samples[i] = entity.IndicatorSample{
			IndicatorID: indicatorID,
			Date:        obs.Date,
			Value:       obs.Value,
		}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "indicator_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&samples).Error
	})
	if err != nil {
		return 0, err
	}
	return len(samples), nil
}

func (r *indicatorRepository) GetSamples(ctx context.Context, indicatorID uint, since time.Time) ([]entity.IndicatorSample, error) {
	var samples []entity.IndicatorSample
	query := r.db.WithContext(ctx).Where("indicator_id = ?", indicatorID)
	if !since.IsZero() {
		query = query.Where("date >= ?", since)
	}
	if err := query.Order("date asc").Find(&samples).Error; err != nil {
		return nil, err
	}
	return samples, nil
}

func (r *indicatorRepository) GetLatestSample(ctx context.Context, indicatorID uint) (*entity.IndicatorSample, error) {
	var sample entity.IndicatorSample
	err := r.db.WithContext(ctx).Where("indicator_id = ?", indicatorID).Order("date desc").First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

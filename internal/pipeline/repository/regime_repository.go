package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signal-trackers/internal/entity"
)

// RegimeRepository defines the interface for regime record storage.
type RegimeRepository interface {
	Save(ctx context.Context, record *entity.RegimeRecord) error
	GetLatest(ctx context.Context) (*entity.RegimeRecord, error)
	GetRecent(ctx context.Context, limit int) ([]entity.RegimeRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type regimeRepository struct {
	db *gorm.DB
}

// NewRegimeRepository creates a new RegimeRepository.
func NewRegimeRepository(db *gorm.DB) RegimeRepository {
	return &regimeRepository{db: db}
}

// Save upserts the record for its date, replacing any prior classification.
func (r *regimeRepository) Save(ctx context.Context, record *entity.RegimeRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"regime", "confidence", "stress_score", "method", "features"}),
	}).Create(record).Error
}

func (r *regimeRepository) GetLatest(ctx context.Context) (*entity.RegimeRecord, error) {
	var record entity.RegimeRecord
	err := r.db.WithContext(ctx).Order("date desc").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetRecent returns the newest records first, at most limit of them.
func (r *regimeRepository) GetRecent(ctx context.Context, limit int) ([]entity.RegimeRecord, error) {
	var records []entity.RegimeRecord
	err := r.db.WithContext(ctx).Order("date desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *regimeRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("date < ?", cutoff).Delete(&entity.RegimeRecord{})
	return result.RowsAffected, result.Error
}

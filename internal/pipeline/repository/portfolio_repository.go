package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"signal-trackers/internal/entity"
)

// PortfolioRepository defines the interface for model allocation storage.
type PortfolioRepository interface {
	GetByRegime(ctx context.Context, regime string) (*entity.PortfolioAllocation, error)
}

type portfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new PortfolioRepository.
func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

func (r *portfolioRepository) GetByRegime(ctx context.Context, regime string) (*entity.PortfolioAllocation, error) {
	var allocation entity.PortfolioAllocation
	err := r.db.WithContext(ctx).Where("regime = ?", regime).First(&allocation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

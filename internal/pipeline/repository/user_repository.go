package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"signal-trackers/internal/entity"
)

// UserRepository defines the interface for user and preference storage.
type UserRepository interface {
	GetActiveWithPreferences(ctx context.Context) ([]entity.User, error)
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	SetLastBriefingSentDate(ctx context.Context, userID uint, date time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetActiveWithPreferences(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Preload("AlertPreference").
		Where("is_active = ?", true).
		Order("id asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Preload("AlertPreference").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetLastBriefingSentDate advances the briefing dedup date. The guard only
// moves forward so concurrent composers cannot roll it back.
func (r *userRepository) SetLastBriefingSentDate(ctx context.Context, userID uint, date time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.AlertPreference{}).
		Where("user_id = ? AND (last_briefing_sent_date IS NULL OR last_briefing_sent_date < ?)", userID, date).
		Update("last_briefing_sent_date", date).Error
}

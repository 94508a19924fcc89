package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"signal-trackers/internal/entity"
)

// AlertRepository defines the interface for alert event storage.
type AlertRepository interface {
	CreateBatch(ctx context.Context, alerts []*entity.Alert) error
	ExistsWithin(ctx context.Context, userID uint, alertType string, since time.Time) (bool, error)
	GetUnsent(ctx context.Context) ([]entity.Alert, error)
	MarkSent(ctx context.Context, ids []uint, sentAt time.Time) error
	GetRecentForUser(ctx context.Context, userID uint, since time.Time) ([]entity.Alert, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// CreateBatch appends all events for one user in a single transaction.
func (r *alertRepository) CreateBatch(ctx context.Context, alerts []*entity.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, alert := range alerts {
			if err := tx.Create(alert).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ExistsWithin reports whether an event of the given type fired for the user
// since the cutoff. This existence query is the cool-down guard.
func (r *alertRepository) ExistsWithin(ctx context.Context, userID uint, alertType string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Alert{}).
		Where("user_id = ? AND alert_type = ? AND triggered_at >= ?", userID, alertType, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *alertRepository) GetUnsent(ctx context.Context) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := r.db.WithContext(ctx).
		Where("email_sent = ?", false).
		Order("user_id asc, triggered_at asc").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) MarkSent(ctx context.Context, ids []uint, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&entity.Alert{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"email_sent": true, "email_sent_at": sentAt}).Error
}

func (r *alertRepository) GetRecentForUser(ctx context.Context, userID uint, since time.Time) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND triggered_at >= ?", userID, since).
		Order("triggered_at desc").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/detector"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/pkg/logger"
)

// AlertService evaluates detector rules for every eligible user.
type AlertService interface {
	CheckAlerts(ctx context.Context) (int, error)
}

type alertService struct {
	store     StoreService
	userRepo  repository.UserRepository
	alertRepo repository.AlertRepository
	detectors []detector.Detector
	logger    *logger.Logger
	now       func() time.Time
}

// NewAlertService creates a new AlertService.
func NewAlertService(
	store StoreService,
	userRepo repository.UserRepository,
	alertRepo repository.AlertRepository,
	log *logger.Logger,
) AlertService {
	return &alertService{
		store:     store,
		userRepo:  userRepo,
		alertRepo: alertRepo,
		detectors: detector.All(),
		logger:    log,
		now:       time.Now,
	}
}

// CheckAlerts runs every detector for every user with alerts enabled. The
// snapshots are built once per run and shared across users. Events for one
// user commit together before the next user is processed.
func (s *alertService) CheckAlerts(ctx context.Context) (int, error) {
	users, err := s.userRepo.GetActiveWithPreferences(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	input, err := s.buildInput(ctx, now)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, user := range users {
		prefs := user.AlertPreference
		if prefs == nil || !prefs.AlertsEnabled {
			continue
		}

		var alerts []*entity.Alert
		for _, d := range s.detectors {
			if !d.Enabled(prefs) {
				continue
			}
			cooldownOK, err := s.cooldownClear(ctx, user.ID, d, now)
			if err != nil {
				s.logger.ErrorContext(ctx, "Cool-down query failed",
					logger.StringField("detector", d.Type()), logger.ErrorField(err))
				continue
			}
			if !cooldownOK {
				continue
			}
			finding := s.evaluateIsolated(d, input)
			if finding == nil {
				continue
			}
			alerts = append(alerts, &entity.Alert{
				UserID:            user.ID,
				AlertType:         d.Type(),
				Title:             finding.Title,
				Message:           finding.Message,
				Severity:          finding.Severity,
				MetricName:        finding.MetricName,
				MetricValue:       finding.MetricValue,
				Threshold:         finding.Threshold,
				ExtremeIndicators: finding.ExtremeIndicators,
				TriggeredAt:       now,
			})
		}

		if len(alerts) == 0 {
			continue
		}
		if err := s.alertRepo.CreateBatch(ctx, alerts); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist alerts for user",
				logger.IntField("user_id", int(user.ID)), logger.ErrorField(err))
			continue
		}
		total += len(alerts)
	}

	if total > 0 {
		s.logger.Info("Alert check finished", logger.IntField("new_events", total))
	}
	return total, nil
}

func (s *alertService) buildInput(ctx context.Context, now time.Time) (detector.Input, error) {
	current, err := s.store.Snapshot(ctx)
	if err != nil {
		return detector.Input{}, err
	}
	oneDay, err := s.store.SnapshotAsOf(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		return detector.Input{}, err
	}
	sevenDay, err := s.store.SnapshotAsOf(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return detector.Input{}, err
	}
	return detector.Input{Now: current, OneDayAgo: oneDay, SevenDayAgo: sevenDay}, nil
}

func (s *alertService) cooldownClear(ctx context.Context, userID uint, d detector.Detector, now time.Time) (bool, error) {
	exists, err := s.alertRepo.ExistsWithin(ctx, userID, d.Type(), now.Add(-d.Cooldown()))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// evaluateIsolated guards each detector so one panicking predicate cannot
// take down the others.
func (s *alertService) evaluateIsolated(d detector.Detector, input detector.Input) (finding *detector.Finding) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Detector panicked",
				logger.StringField("detector", d.Type()),
				logger.ErrorField(fmt.Errorf("%v", r)))
			finding = nil
		}
	}()
	return d.Evaluate(input)
}

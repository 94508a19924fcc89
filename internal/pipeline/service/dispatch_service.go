package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/mailer"
	"signal-trackers/pkg/telegram"
)

// DispatchService transmits unsent alert events by email, one batched
// message per user.
type DispatchService interface {
	DispatchPending(ctx context.Context) (int, error)
}

type dispatchService struct {
	alertRepo repository.AlertRepository
	userRepo  repository.UserRepository
	sender    mailer.Sender
	notifier  telegram.Notifier
	logger    *logger.Logger
	now       func() time.Time
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	alertRepo repository.AlertRepository,
	userRepo repository.UserRepository,
	sender mailer.Sender,
	notifier telegram.Notifier,
	log *logger.Logger,
) DispatchService {
	return &dispatchService{
		alertRepo: alertRepo,
		userRepo:  userRepo,
		sender:    sender,
		notifier:  notifier,
		logger:    log,
		now:       time.Now,
	}
}

// DispatchPending groups unsent events by user and sends one email per user.
// Transmission failures leave the email-sent flag untouched so the next tick
// retries; users who have disabled alerts get their backlog marked sent
// without transmission.
func (s *dispatchService) DispatchPending(ctx context.Context) (int, error) {
	pending, err := s.alertRepo.GetUnsent(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	byUser := make(map[uint][]entity.Alert)
	for _, alert := range pending {
		byUser[alert.UserID] = append(byUser[alert.UserID], alert)
	}

	sent := 0
	for userID, alerts := range byUser {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to load alert recipient",
				logger.IntField("user_id", int(userID)), logger.ErrorField(err))
			continue
		}

		ids := make([]uint, len(alerts))
		for i, a := range alerts {
			ids[i] = a.ID
		}

		if user.AlertPreference == nil || !user.AlertPreference.AlertsEnabled {
			if err := s.alertRepo.MarkSent(ctx, ids, s.now()); err != nil {
				s.logger.ErrorContext(ctx, "Failed to mark disabled user's alerts",
					logger.IntField("user_id", int(userID)), logger.ErrorField(err))
			}
			continue
		}

		subject := fmt.Sprintf("[%s] SignalTrackers alert", strings.ToUpper(highestSeverity(alerts)))
		if err := s.sender.Send(user.Email, subject, renderAlertEmail(alerts)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to send alert email, will retry next tick",
				logger.IntField("user_id", int(userID)), logger.ErrorField(err))
			continue
		}
		if err := s.alertRepo.MarkSent(ctx, ids, s.now()); err != nil {
			s.logger.ErrorContext(ctx, "Failed to mark alerts sent",
				logger.IntField("user_id", int(userID)), logger.ErrorField(err))
			continue
		}
		sent += len(alerts)

		s.mirrorCritical(alerts)
	}
	return sent, nil
}

// mirrorCritical forwards critical events to the shared Telegram channel.
// Mirror failures are logged and never block email delivery state.
func (s *dispatchService) mirrorCritical(alerts []entity.Alert) {
	for _, alert := range alerts {
		if alert.Severity != entity.SeverityCritical {
			continue
		}
		msg := telegram.FormatAlertMessage(alert.AlertType, alert.Severity, alert.Message, alert.TriggeredAt)
		if err := s.notifier.SendMessage(msg); err != nil {
			s.logger.Error("Failed to mirror alert to Telegram", logger.ErrorField(err))
		}
	}
}

var severityRank = map[string]int{
	entity.SeverityInfo:     0,
	entity.SeverityWarning:  1,
	entity.SeverityCritical: 2,
}

func highestSeverity(alerts []entity.Alert) string {
	top := entity.SeverityInfo
	for _, a := range alerts {
		if severityRank[a.Severity] > severityRank[top] {
			top = a.Severity
		}
	}
	return top
}

func renderAlertEmail(alerts []entity.Alert) string {
	var sb strings.Builder
	sb.WriteString("<h2>Market alerts</h2>")
	for _, a := range alerts {
		sb.WriteString(fmt.Sprintf("<h3>%s</h3>", a.Title))
		sb.WriteString(fmt.Sprintf("<p>%s</p>", a.Message))
		if a.MetricName != "" {
			sb.WriteString(fmt.Sprintf("<p><em>%s = %.2f (threshold %.2f)</em></p>", a.MetricName, a.MetricValue, a.Threshold))
		}
		if len(a.ExtremeIndicators) > 0 {
			sb.WriteString(fmt.Sprintf("<p>Indicators at extremes: %s</p>", strings.Join(a.ExtremeIndicators, ", ")))
		}
		sb.WriteString(fmt.Sprintf("<p><small>%s</small></p>", a.TriggeredAt.Format("2006-01-02 15:04 MST")))
	}
	return sb.String()
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/mailer"
	"signal-trackers/pkg/utils"
)

const topMoverCount = 5

// BriefingService assembles and sends per-user daily digests.
type BriefingService interface {
	ComposeAndSend(ctx context.Context) (int, error)
}

type briefingService struct {
	store         StoreService
	regime        RegimeService
	summary       SummaryService
	userRepo      repository.UserRepository
	alertRepo     repository.AlertRepository
	portfolioRepo repository.PortfolioRepository
	kalshiRepo    repository.KalshiRepository
	sender        mailer.Sender
	logger        *logger.Logger
	now           func() time.Time
}

// NewBriefingService creates a new BriefingService. The clock is injectable
// for timezone-and-dedup tests.
func NewBriefingService(
	store StoreService,
	regime RegimeService,
	summary SummaryService,
	userRepo repository.UserRepository,
	alertRepo repository.AlertRepository,
	portfolioRepo repository.PortfolioRepository,
	kalshiRepo repository.KalshiRepository,
	sender mailer.Sender,
	log *logger.Logger,
	now func() time.Time,
) BriefingService {
	if now == nil {
		now = time.Now
	}
	return &briefingService{
		store:         store,
		regime:        regime,
		summary:       summary,
		userRepo:      userRepo,
		alertRepo:     alertRepo,
		portfolioRepo: portfolioRepo,
		kalshiRepo:    kalshiRepo,
		sender:        sender,
		logger:        log,
		now:           now,
	}
}

// ComposeAndSend walks every user with briefings enabled and sends at most
// one email per user per local calendar day. The dedup date commits before
// the loop advances to the next user.
func (s *briefingService) ComposeAndSend(ctx context.Context) (int, error) {
	users, err := s.userRepo.GetActiveWithPreferences(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		prefs := user.AlertPreference
		if prefs == nil || !prefs.DailyBriefingEnabled || prefs.BriefingFrequency == entity.FrequencyOff {
			continue
		}

		loc, err := time.LoadLocation(prefs.TimeZone)
		if err != nil {
			s.logger.ErrorContext(ctx, "User has an invalid timezone, skipping briefing",
				logger.IntField("user_id", int(user.ID)), logger.StringField("time_zone", prefs.TimeZone))
			continue
		}

		localNow := s.now().In(loc)
		localToday := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)

		if prefs.LastBriefingSentDate != nil && utils.SameDate(*prefs.LastBriefingSentDate, localToday, time.UTC) {
			continue
		}
		if localNow.Hour() != prefs.PreferredHour {
			continue
		}
		if prefs.BriefingFrequency == entity.FrequencyWeekly && localNow.Weekday() != time.Monday {
			continue
		}

		body, err := s.composeBody(ctx, user, localNow)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to compose briefing",
				logger.IntField("user_id", int(user.ID)), logger.ErrorField(err))
			continue
		}

		subject := fmt.Sprintf("Your market briefing for %s", localNow.Format("Jan 2, 2006"))
		if err := s.sender.Send(user.Email, subject, body); err != nil {
			s.logger.ErrorContext(ctx, "Failed to send briefing, will retry next tick",
				logger.IntField("user_id", int(user.ID)), logger.ErrorField(err))
			continue
		}
		if err := s.userRepo.SetLastBriefingSentDate(ctx, user.ID, localToday); err != nil {
			s.logger.ErrorContext(ctx, "Failed to record briefing dedup date",
				logger.IntField("user_id", int(user.ID)), logger.ErrorField(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *briefingService) composeBody(ctx context.Context, user entity.User, localNow time.Time) (string, error) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	regime, err := s.regime.Latest(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h2>Market briefing, %s</h2>", localNow.Format("Monday, January 2")))

	if regime != nil {
		line := fmt.Sprintf("<p><strong>Regime:</strong> %s (confidence %s", regime.Regime, regime.Confidence)
		if trend, err := s.regime.ConfidenceTrend(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to compute confidence trend", logger.ErrorField(err))
		} else {
			line += fmt.Sprintf(", %s", trend)
		}
		sb.WriteString(line + ")</p>")
	}

	if narrative, err := s.summary.GetForDate(ctx, s.now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load narrative for briefing", logger.ErrorField(err))
	} else if narrative != nil {
		sb.WriteString("<h3>Today's view</h3>")
		for _, paragraph := range strings.Split(narrative.Summary, "\n\n") {
			sb.WriteString(fmt.Sprintf("<p>%s</p>", paragraph))
		}
	}

	if movers := TopMovers(snapshot, topMoverCount); len(movers) > 0 {
		sb.WriteString("<h3>Top movers</h3><ul>")
		for _, m := range movers {
			change := m.Changes[5]
			sb.WriteString(fmt.Sprintf("<li>%s: %.2f (5d %+.2f)</li>", m.DisplayName, m.Value, change.Absolute))
		}
		sb.WriteString("</ul>")
	}

	if alerts, err := s.alertRepo.GetRecentForUser(ctx, user.ID, s.now().Add(-24*time.Hour)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load recent alerts for briefing", logger.ErrorField(err))
	} else if len(alerts) > 0 {
		sb.WriteString("<h3>Your alerts (last 24h)</h3><ul>")
		for _, a := range alerts {
			sb.WriteString(fmt.Sprintf("<li>[%s] %s</li>", a.Severity, a.Title))
		}
		sb.WriteString("</ul>")
	}

	if user.AlertPreference.IncludePortfolio && regime != nil {
		if allocation, err := s.portfolioRepo.GetByRegime(ctx, regime.Regime); err != nil {
			s.logger.ErrorContext(ctx, "Failed to load portfolio allocation", logger.ErrorField(err))
		} else if allocation != nil {
			sb.WriteString(fmt.Sprintf(
				"<h3>Model allocation for %s</h3><p>Equities %.0f%%, Bonds %.0f%%, Commodities %.0f%%, Cash %.0f%%</p>",
				allocation.Regime, allocation.Equities, allocation.Bonds, allocation.Commodities, allocation.Cash))
		}
	}

	if market, err := s.kalshiRepo.GetRecessionMarket(ctx); err != nil {
		s.logger.Debug("Prediction market unavailable for briefing", logger.ErrorField(err))
	} else if market != nil {
		sb.WriteString(fmt.Sprintf("<p><small>Prediction market: %s at %.0f%% implied probability.</small></p>",
			market.Title, market.Probability*100))
	}

	return sb.String(), nil
}

// TopMovers ranks indicators by |5-day change / trailing std|, breaking
// ties by key, and returns at most n metrics.
func TopMovers(snapshot dto.Snapshot, n int) []dto.Metric {
	var movers []dto.Metric
	for _, metric := range snapshot {
		if metric.MoverValid {
			movers = append(movers, metric)
		}
	}
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].MoverScore != movers[j].MoverScore {
			return movers[i].MoverScore > movers[j].MoverScore
		}
		return movers[i].Key < movers[j].Key
	})
	if len(movers) > n {
		movers = movers[:n]
	}
	return movers
}

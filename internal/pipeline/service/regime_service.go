package service

import (
	"context"
	"encoding/json"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/classifier"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/telegram"
	"signal-trackers/pkg/utils"
)

const regimeRetentionDays = 90

// RegimeService derives and persists the current market regime.
type RegimeService interface {
	Update(ctx context.Context) (*entity.RegimeRecord, error)
	Latest(ctx context.Context) (*entity.RegimeRecord, error)
	ConfidenceTrend(ctx context.Context) (string, error)
}

type regimeService struct {
	store      StoreService
	regimeRepo repository.RegimeRepository
	notifier   telegram.Notifier
	logger     *logger.Logger
	now        func() time.Time
}

// NewRegimeService creates a new RegimeService.
func NewRegimeService(store StoreService, regimeRepo repository.RegimeRepository, notifier telegram.Notifier, log *logger.Logger) RegimeService {
	return &regimeService{
		store:      store,
		regimeRepo: regimeRepo,
		notifier:   notifier,
		logger:     log,
		now:        time.Now,
	}
}

func (s *regimeService) Update(ctx context.Context) (*entity.RegimeRecord, error) {
	keys := []string{
		classifier.KeyHighYieldSpread,
		classifier.KeyYieldCurve,
		classifier.KeyNFCI,
		classifier.KeyInitialClaims,
		classifier.KeyFedFunds,
	}
	since := s.now().UTC().AddDate(0, -classifier.HistoryMonths, 0)
	history, err := s.store.ClassifierHistory(ctx, keys, since)
	if err != nil {
		return nil, err
	}

	result := classifier.Classify(history)

	features, err := json.Marshal(result.Features)
	if err != nil {
		return nil, err
	}
	prior, err := s.regimeRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	record := &entity.RegimeRecord{
		Date:        utils.DateOnly(s.now().UTC()),
		Regime:      result.Regime,
		Confidence:  result.Confidence,
		StressScore: result.StressScore,
		Method:      result.Method,
		Features:    features,
	}
	if err := s.regimeRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -regimeRetentionDays)
	if pruned, err := s.regimeRepo.PruneOlderThan(ctx, cutoff); err != nil {
		s.logger.ErrorContext(ctx, "Failed to prune regime history", logger.ErrorField(err))
	} else if pruned > 0 {
		s.logger.Debug("Pruned regime history", logger.IntField("rows", int(pruned)))
	}

	if prior == nil || prior.Regime != record.Regime {
		s.announceChange(record)
	}

	s.logger.Info("Regime updated",
		logger.StringField("regime", record.Regime),
		logger.StringField("confidence", record.Confidence),
		logger.StringField("method", record.Method))
	return record, nil
}

// announceChange posts regime transitions to the shared ops channel. The
// send is fire-and-forget; a failure never blocks the classification run.
func (s *regimeService) announceChange(record *entity.RegimeRecord) {
	msg := telegram.FormatRegimeMessage(record.Regime, record.Confidence, record.StressScore, record.Date)
	utils.GoSafe(func() {
		if err := s.notifier.SendMessage(msg); err != nil {
			s.logger.Error("Failed to announce regime change", logger.ErrorField(err))
		}
	})
}

func (s *regimeService) Latest(ctx context.Context) (*entity.RegimeRecord, error) {
	return s.regimeRepo.GetLatest(ctx)
}

// ConfidenceTrend reads the last ten classifications and reports whether
// confidence has been improving, deteriorating, or holding steady.
func (s *regimeService) ConfidenceTrend(ctx context.Context) (string, error) {
	records, err := s.regimeRepo.GetRecent(ctx, 10)
	if err != nil {
		return "", err
	}
	confidences := make([]string, 0, len(records))
	for _, r := range records {
		confidences = append(confidences, r.Confidence)
	}
	return classifier.ConfidenceTrend(confidences), nil
}

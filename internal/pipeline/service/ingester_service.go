package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/internal/pipeline/series"
	"signal-trackers/pkg/logger"
)

const (
	ingestMaxAttempts = 3
	ingestBaseBackoff = 2 * time.Second
)

// IngesterService pulls fresh observations for every configured indicator.
type IngesterService interface {
	IngestAll(ctx context.Context) ([]dto.IngestResult, error)
}

type ingesterService struct {
	cfg           *config.Config
	indicatorRepo repository.IndicatorRepository
	fredRepo      repository.MarketDataRepository
	yahooRepo     repository.MarketDataRepository
	logger        *logger.Logger
}

// NewIngesterService creates a new IngesterService.
func NewIngesterService(
	cfg *config.Config,
	indicatorRepo repository.IndicatorRepository,
	fredRepo repository.MarketDataRepository,
	yahooRepo repository.MarketDataRepository,
	log *logger.Logger,
) IngesterService {
	return &ingesterService{
		cfg:           cfg,
		indicatorRepo: indicatorRepo,
		fredRepo:      fredRepo,
		yahooRepo:     yahooRepo,
		logger:        log,
	}
}

// IngestAll processes every configured indicator independently. A failing
// provider marks that indicator FAILED and the run continues; derived
// indicators are computed after their inputs have been refreshed.
func (s *ingesterService) IngestAll(ctx context.Context) ([]dto.IngestResult, error) {
	results := make([]dto.IngestResult, 0, len(s.cfg.Indicators))
	var derived []config.IndicatorSpec

	for _, spec := range s.cfg.Indicators {
		if spec.Source == entity.IndicatorSourceDerived {
			derived = append(derived, spec)
			continue
		}
		results = append(results, s.ingestOne(ctx, spec))
	}
	for _, spec := range derived {
		results = append(results, s.ingestDerived(ctx, spec))
	}

	success := 0
	for _, r := range results {
		if r.Status == dto.IngestStatusSuccess {
			success++
		}
	}
	s.logger.Info("Indicator ingest finished",
		logger.IntField("total", len(results)), logger.IntField("success", success))
	return results, nil
}

func (s *ingesterService) ingestOne(ctx context.Context, spec config.IndicatorSpec) dto.IngestResult {
	indicator, err := s.ensureIndicator(ctx, spec)
	if err != nil {
		return failedResult(spec.Key, err)
	}

	provider, err := s.providerFor(spec.Source)
	if err != nil {
		return failedResult(spec.Key, err)
	}

	lookback := spec.LookbackDays
	if lookback <= 0 {
		lookback = 365
	}
	since := time.Now().UTC().AddDate(0, 0, -lookback)

	observations, err := s.fetchWithRetry(ctx, provider, spec.SeriesID, since)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyResponse) {
			// An empty payload must not overwrite existing data.
			s.logger.WarnContext(ctx, "Provider returned no data, keeping existing samples",
				logger.StringField("indicator", spec.Key))
			return dto.IngestResult{IndicatorKey: spec.Key, Status: dto.IngestStatusSkipped}
		}
		return failedResult(spec.Key, err)
	}

	if spec.ScaleFactor != 0 && spec.ScaleFactor != 1 {
		for i := range observations {
			observations[i].Value *= spec.ScaleFactor
		}
	}

	count, err := s.indicatorRepo.UpsertSamples(ctx, indicator.ID, observations)
	if err != nil {
		return failedResult(spec.Key, err)
	}
	return dto.IngestResult{IndicatorKey: spec.Key, Status: dto.IngestStatusSuccess, SampleCount: count}
}

// ingestDerived computes a ratio indicator from two stored series. The
// series ID has the form "numerator_key/denominator_key".
func (s *ingesterService) ingestDerived(ctx context.Context, spec config.IndicatorSpec) dto.IngestResult {
	indicator, err := s.ensureIndicator(ctx, spec)
	if err != nil {
		return failedResult(spec.Key, err)
	}

	parts := strings.Split(spec.SeriesID, "/")
	if len(parts) != 2 {
		return failedResult(spec.Key, fmt.Errorf("derived series id must be \"numerator/denominator\", got %q", spec.SeriesID))
	}

	numerator, err := s.loadSamples(ctx, parts[0])
	if err != nil {
		return failedResult(spec.Key, err)
	}
	denominator, err := s.loadSamples(ctx, parts[1])
	if err != nil {
		return failedResult(spec.Key, err)
	}

	byDate := make(map[time.Time]float64, len(denominator))
	for _, d := range denominator {
		if d.Value != 0 {
			byDate[d.Date] = d.Value
		}
	}
	var observations []dto.Observation
	for _, n := range numerator {
		if d, ok := byDate[n.Date]; ok {
			observations = append(observations, dto.Observation{Date: n.Date, Value: n.Value / d})
		}
	}
	if len(observations) == 0 {
		return dto.IngestResult{IndicatorKey: spec.Key, Status: dto.IngestStatusSkipped}
	}

	count, err := s.indicatorRepo.UpsertSamples(ctx, indicator.ID, observations)
	if err != nil {
		return failedResult(spec.Key, err)
	}
	return dto.IngestResult{IndicatorKey: spec.Key, Status: dto.IngestStatusSuccess, SampleCount: count}
}

func (s *ingesterService) loadSamples(ctx context.Context, key string) ([]series.Sample, error) {
	indicator, err := s.indicatorRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("derived input %s: %w", key, err)
	}
	rows, err := s.indicatorRepo.GetSamples(ctx, indicator.ID, time.Time{})
	if err != nil {
		return nil, err
	}
	out := make([]series.Sample, len(rows))
	for i, row := range rows {
		out[i] = series.Sample{Date: row.Date, Value: row.Value}
	}
	return out, nil
}

func (s *ingesterService) ensureIndicator(ctx context.Context, spec config.IndicatorSpec) (*entity.Indicator, error) {
	indicator := &entity.Indicator{
		Key:            spec.Key,
		DisplayName:    spec.DisplayName,
		Source:         spec.Source,
		SeriesID:       spec.SeriesID,
		Unit:           spec.Unit,
		Category:       spec.Category,
		HigherIsStress: spec.HigherIsStress,
	}
	if err := s.indicatorRepo.Upsert(ctx, indicator); err != nil {
		return nil, err
	}
	return s.indicatorRepo.GetByKey(ctx, spec.Key)
}

func (s *ingesterService) providerFor(source string) (repository.MarketDataRepository, error) {
	switch source {
	case entity.IndicatorSourceFRED:
		return s.fredRepo, nil
	case entity.IndicatorSourceYahoo:
		return s.yahooRepo, nil
	default:
		return nil, fmt.Errorf("unknown indicator source %q", source)
	}
}

// fetchWithRetry retries transient failures with jittered exponential
// backoff. Auth, parse, and empty errors surface immediately.
func (s *ingesterService) fetchWithRetry(ctx context.Context, provider repository.MarketDataRepository, seriesID string, since time.Time) ([]dto.Observation, error) {
	var lastErr error
	for attempt := 1; attempt <= ingestMaxAttempts; attempt++ {
		observations, err := provider.Fetch(ctx, seriesID, since)
		if err == nil {
			return observations, nil
		}
		lastErr = err
		if !errors.Is(err, repository.ErrUnreachable) {
			return nil, err
		}
		if attempt == ingestMaxAttempts {
			break
		}

		backoff := ingestBaseBackoff * time.Duration(1<<(attempt-1))
		jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
		s.logger.WarnContext(ctx, "Provider fetch failed, retrying",
			logger.StringField("series_id", seriesID),
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return nil, lastErr
}

func failedResult(key string, err error) dto.IngestResult {
	return dto.IngestResult{IndicatorKey: key, Status: dto.IngestStatusFailed, Error: err.Error()}
}

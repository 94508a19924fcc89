package service

import (
	"context"
	"math"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/internal/pipeline/series"
	"signal-trackers/pkg/logger"
)

// changeWindows are the N-day change horizons exposed by snapshots.
var changeWindows = []int{1, 5, 10, 30}

const moverStdWindow = 5

// StoreService is the derived-metric view over the indicator store.
type StoreService interface {
	Latest(ctx context.Context, key string) (series.Sample, bool, error)
	History(ctx context.Context, key string, since time.Time) ([]series.Sample, error)
	Change(ctx context.Context, key string, n int) (dto.Change, error)
	Percentile(ctx context.Context, key string) (float64, bool, error)
	Snapshot(ctx context.Context) (dto.Snapshot, error)
	SnapshotAsOf(ctx context.Context, cutoff time.Time) (dto.Snapshot, error)
	ClassifierHistory(ctx context.Context, keys []string, since time.Time) (map[string][]series.Sample, error)
}

type storeService struct {
	indicatorRepo repository.IndicatorRepository
	logger        *logger.Logger
}

// NewStoreService creates a new StoreService.
func NewStoreService(indicatorRepo repository.IndicatorRepository, log *logger.Logger) StoreService {
	return &storeService{indicatorRepo: indicatorRepo, logger: log}
}

func (s *storeService) samplesByKey(ctx context.Context, key string, since time.Time) ([]series.Sample, error) {
	indicator, err := s.indicatorRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.samples(ctx, indicator.ID, since)
}

func (s *storeService) samples(ctx context.Context, indicatorID uint, since time.Time) ([]series.Sample, error) {
	rows, err := s.indicatorRepo.GetSamples(ctx, indicatorID, since)
	if err != nil {
		return nil, err
	}
	out := make([]series.Sample, len(rows))
	for i, row := range rows {
		out[i] = series.Sample{Date: row.Date, Value: row.Value}
	}
	return out, nil
}

func (s *storeService) Latest(ctx context.Context, key string) (series.Sample, bool, error) {
	indicator, err := s.indicatorRepo.GetByKey(ctx, key)
	if err != nil {
		return series.Sample{}, false, err
	}
	row, err := s.indicatorRepo.GetLatestSample(ctx, indicator.ID)
	if err != nil {
		return series.Sample{}, false, err
	}
	if row == nil {
		return series.Sample{}, false, nil
	}
	return series.Sample{Date: row.Date, Value: row.Value}, true, nil
}

func (s *storeService) History(ctx context.Context, key string, since time.Time) ([]series.Sample, error) {
	return s.samplesByKey(ctx, key, since)
}

func (s *storeService) Change(ctx context.Context, key string, n int) (dto.Change, error) {
	samples, err := s.samplesByKey(ctx, key, time.Time{})
	if err != nil {
		return dto.Change{}, err
	}
	abs, rel, ok := series.Change(samples, n)
	return dto.Change{Absolute: abs, Relative: rel, Valid: ok}, nil
}

func (s *storeService) Percentile(ctx context.Context, key string) (float64, bool, error) {
	samples, err := s.samplesByKey(ctx, key, time.Time{})
	if err != nil {
		return 0, false, err
	}
	p, ok := series.Percentile(samples)
	return p, ok, nil
}

// Snapshot builds the derived view of every indicator that has samples.
// Indicators without samples are omitted. Each indicator is read in one
// query, so a reader observes pre- or post-append state per indicator.
func (s *storeService) Snapshot(ctx context.Context) (dto.Snapshot, error) {
	return s.SnapshotAsOf(ctx, time.Time{})
}

// SnapshotAsOf builds the snapshot as it stood at the cutoff date. A zero
// cutoff means now.
func (s *storeService) SnapshotAsOf(ctx context.Context, cutoff time.Time) (dto.Snapshot, error) {
	indicators, err := s.indicatorRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make(dto.Snapshot, len(indicators))
	for _, indicator := range indicators {
		samples, err := s.samples(ctx, indicator.ID, time.Time{})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to load samples for snapshot",
				logger.StringField("indicator", indicator.Key), logger.ErrorField(err))
			continue
		}
		if !cutoff.IsZero() {
			samples = truncateAfter(samples, cutoff)
		}
		metric, ok := buildMetric(indicator, samples)
		if !ok {
			continue
		}
		snapshot[indicator.Key] = metric
	}
	return snapshot, nil
}

func (s *storeService) ClassifierHistory(ctx context.Context, keys []string, since time.Time) (map[string][]series.Sample, error) {
	out := make(map[string][]series.Sample, len(keys))
	for _, key := range keys {
		samples, err := s.samplesByKey(ctx, key, since)
		if err != nil {
			s.logger.WarnContext(ctx, "Classifier input series unavailable",
				logger.StringField("indicator", key), logger.ErrorField(err))
			continue
		}
		out[key] = samples
	}
	return out, nil
}

func truncateAfter(samples []series.Sample, cutoff time.Time) []series.Sample {
	n := len(samples)
	for n > 0 && samples[n-1].Date.After(cutoff) {
		n--
	}
	return samples[:n]
}

func buildMetric(indicator entity.Indicator, samples []series.Sample) (dto.Metric, bool) {
	latest, ok := series.Latest(samples)
	if !ok {
		return dto.Metric{}, false
	}

	metric := dto.Metric{
		Key:         indicator.Key,
		DisplayName: indicator.DisplayName,
		Category:    indicator.Category,
		Value:       latest.Value,
		Date:        latest.Date,
		Changes:     make(map[int]dto.Change, len(changeWindows)),
	}
	metric.Percentile, metric.PercentileValid = series.Percentile(samples)

	for _, n := range changeWindows {
		abs, rel, valid := series.Change(samples, n)
		metric.Changes[n] = dto.Change{Absolute: abs, Relative: rel, Valid: valid}
	}

	if change5, ok := metric.Changes[5]; ok && change5.Valid {
		if std, ok := series.TrailingStd(samples, moverStdWindow); ok {
			metric.MoverScore = math.Abs(change5.Absolute / std)
			metric.MoverValid = true
		}
	}
	return metric, true
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/classifier"
	"signal-trackers/internal/pipeline/series"
	"signal-trackers/pkg/telegram"
)

type fakeRegimeRepo struct {
	saved       []*entity.RegimeRecord
	latest      *entity.RegimeRecord
	recent      []entity.RegimeRecord
	pruneCutoff time.Time
}

func (f *fakeRegimeRepo) Save(_ context.Context, record *entity.RegimeRecord) error {
	f.saved = append(f.saved, record)
	f.latest = record
	return nil
}

func (f *fakeRegimeRepo) GetLatest(context.Context) (*entity.RegimeRecord, error) {
	return f.latest, nil
}

func (f *fakeRegimeRepo) GetRecent(_ context.Context, limit int) ([]entity.RegimeRecord, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeRegimeRepo) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.pruneCutoff = cutoff
	return 0, nil
}

func calmClassifierHistory() map[string][]series.Sample {
	months := 6
	history := make(map[string][]series.Sample)
	values := map[string]float64{
		classifier.KeyHighYieldSpread: 2.5,
		classifier.KeyYieldCurve:      0.5,
		classifier.KeyNFCI:            -0.5,
		classifier.KeyInitialClaims:   220,
		classifier.KeyFedFunds:        4.0,
	}
	for key, value := range values {
		samples := make([]series.Sample, months)
		for i := 0; i < months; i++ {
			samples[i] = series.Sample{Date: time.Date(2026, time.Month(i+3), 15, 0, 0, 0, 0, time.UTC), Value: value}
		}
		history[key] = samples
	}
	return history
}

func TestRegimeUpdateShortHistoryFallsBackToRules(t *testing.T) {
	store := &fakeStore{history: calmClassifierHistory()}
	repo := &fakeRegimeRepo{}
	svc := NewRegimeService(store, repo, telegram.NoopNotifier{}, newTestLogger(t))

	record, err := svc.Update(context.Background())
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, entity.RegimeBull, record.Regime)
	assert.Equal(t, entity.RegimeMethodRule, record.Method)
	assert.Equal(t, entity.ConfidenceNone, record.Confidence)
	assert.NotEmpty(t, record.Features)

	require.Len(t, repo.saved, 1)
	assert.False(t, repo.pruneCutoff.IsZero())
	// Retention keeps roughly a quarter of daily records.
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -90), repo.pruneCutoff, time.Minute)
}

func TestRegimeLatestReadsRepository(t *testing.T) {
	repo := &fakeRegimeRepo{latest: &entity.RegimeRecord{Regime: entity.RegimeBear, Confidence: entity.ConfidenceLow}}
	svc := NewRegimeService(&fakeStore{}, repo, telegram.NoopNotifier{}, newTestLogger(t))

	record, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, entity.RegimeBear, record.Regime)
}

func TestRegimeConfidenceTrendFromHistory(t *testing.T) {
	repo := &fakeRegimeRepo{recent: []entity.RegimeRecord{
		{Confidence: entity.ConfidenceHigh},
		{Confidence: entity.ConfidenceHigh},
		{Confidence: entity.ConfidenceMedium},
		{Confidence: entity.ConfidenceLow},
		{Confidence: entity.ConfidenceLow},
		{Confidence: entity.ConfidenceLow},
	}}
	svc := NewRegimeService(&fakeStore{}, repo, telegram.NoopNotifier{}, newTestLogger(t))

	trend, err := svc.ConfidenceTrend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, classifier.TrendImproving, trend)
}

package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/internal/pipeline/repository"
)

// fakeIndicatorRepo stores indicators and samples in memory with the same
// upsert-by-date semantics as the Postgres implementation.
type fakeIndicatorRepo struct {
	nextID     uint
	indicators map[string]*entity.Indicator
	samples    map[uint]map[time.Time]float64
}

func newFakeIndicatorRepo() *fakeIndicatorRepo {
	return &fakeIndicatorRepo{
		nextID:     1,
		indicators: make(map[string]*entity.Indicator),
		samples:    make(map[uint]map[time.Time]float64),
	}
}

func (f *fakeIndicatorRepo) GetAll(context.Context) ([]entity.Indicator, error) {
	out := make([]entity.Indicator, 0, len(f.indicators))
	for _, ind := range f.indicators {
		out = append(out, *ind)
	}
	return out, nil
}

func (f *fakeIndicatorRepo) GetByKey(_ context.Context, key string) (*entity.Indicator, error) {
	ind, ok := f.indicators[key]
	if !ok {
		return nil, gormNotFound{}
	}
	return ind, nil
}

func (f *fakeIndicatorRepo) Upsert(_ context.Context, indicator *entity.Indicator) error {
	if existing, ok := f.indicators[indicator.Key]; ok {
		indicator.ID = existing.ID
	} else {
		indicator.ID = f.nextID
		f.nextID++
	}
	f.indicators[indicator.Key] = indicator
	return nil
}

func (f *fakeIndicatorRepo) UpsertSamples(_ context.Context, indicatorID uint, observations []dto.Observation) (int, error) {
	if f.samples[indicatorID] == nil {
		f.samples[indicatorID] = make(map[time.Time]float64)
	}
	for _, obs := range observations {
		f.samples[indicatorID][obs.Date] = obs.Value
	}
	return len(observations), nil
}

func (f *fakeIndicatorRepo) GetSamples(_ context.Context, indicatorID uint, since time.Time) ([]entity.IndicatorSample, error) {
	var out []entity.IndicatorSample
	for date, value := range f.samples[indicatorID] {
		if date.Before(since) {
			continue
		}
		out = append(out, entity.IndicatorSample{IndicatorID: indicatorID, Date: date, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeIndicatorRepo) GetLatestSample(_ context.Context, indicatorID uint) (*entity.IndicatorSample, error) {
	samples, _ := f.GetSamples(context.Background(), indicatorID, time.Time{})
	if len(samples) == 0 {
		return nil, nil
	}
	latest := samples[0]
	for _, s := range samples[1:] {
		if s.Date.After(latest.Date) {
			latest = s
		}
	}
	return &latest, nil
}

type fakeMarketData struct {
	observations map[string][]dto.Observation
	errs         map[string]error
	calls        map[string]int
}

func (f *fakeMarketData) Fetch(_ context.Context, seriesID string, _ time.Time) ([]dto.Observation, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[seriesID]++
	if err := f.errs[seriesID]; err != nil {
		return nil, err
	}
	return f.observations[seriesID], nil
}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestIngestAllAppliesScaleFactor(t *testing.T) {
	cfg := &config.Config{Indicators: []config.IndicatorSpec{
		{Key: "initial_claims", DisplayName: "Initial Claims", Source: entity.IndicatorSourceFRED, SeriesID: "ICSA", Category: entity.CategoryRates, ScaleFactor: 0.001},
	}}
	fred := &fakeMarketData{observations: map[string][]dto.Observation{
		"ICSA": {{Date: day(1), Value: 231000}, {Date: day(8), Value: 240000}},
	}}
	repo := newFakeIndicatorRepo()
	svc := NewIngesterService(cfg, repo, fred, &fakeMarketData{}, newTestLogger(t))

	results, err := svc.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, dto.IngestStatusSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].SampleCount)

	ind := repo.indicators["initial_claims"]
	require.NotNil(t, ind)
	assert.InDelta(t, 231.0, repo.samples[ind.ID][day(1)], 1e-9)
}

func TestIngestAllEmptyResponseNeverOverwrites(t *testing.T) {
	cfg := &config.Config{Indicators: []config.IndicatorSpec{
		{Key: "vix", DisplayName: "VIX", Source: entity.IndicatorSourceYahoo, SeriesID: "^VIX", Category: entity.CategoryEquities},
	}}
	yahoo := &fakeMarketData{errs: map[string]error{"^VIX": repository.ErrEmptyResponse}}
	repo := newFakeIndicatorRepo()

	// Seed an existing sample that the empty fetch must leave intact.
	require.NoError(t, repo.Upsert(context.Background(), &entity.Indicator{Key: "vix"}))
	seeded := repo.indicators["vix"].ID
	_, err := repo.UpsertSamples(context.Background(), seeded, []dto.Observation{{Date: day(1), Value: 17.5}})
	require.NoError(t, err)

	svc := NewIngesterService(cfg, repo, &fakeMarketData{}, yahoo, newTestLogger(t))
	results, err := svc.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, dto.IngestStatusSkipped, results[0].Status)
	assert.Equal(t, 17.5, repo.samples[seeded][day(1)])
}

func TestIngestAllAuthFailureIsNotRetried(t *testing.T) {
	cfg := &config.Config{Indicators: []config.IndicatorSpec{
		{Key: "nfci", DisplayName: "NFCI", Source: entity.IndicatorSourceFRED, SeriesID: "NFCI", Category: entity.CategoryCredit},
	}}
	fred := &fakeMarketData{errs: map[string]error{"NFCI": repository.ErrAuthFailed}}
	repo := newFakeIndicatorRepo()
	svc := NewIngesterService(cfg, repo, fred, &fakeMarketData{}, newTestLogger(t))

	results, err := svc.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, dto.IngestStatusFailed, results[0].Status)
	assert.Equal(t, 1, fred.calls["NFCI"])
}

func TestIngestAllOneFailureDoesNotStopTheRun(t *testing.T) {
	cfg := &config.Config{Indicators: []config.IndicatorSpec{
		{Key: "nfci", Source: entity.IndicatorSourceFRED, SeriesID: "NFCI", Category: entity.CategoryCredit},
		{Key: "vix", Source: entity.IndicatorSourceYahoo, SeriesID: "^VIX", Category: entity.CategoryEquities},
	}}
	fred := &fakeMarketData{errs: map[string]error{"NFCI": repository.ErrAuthFailed}}
	yahoo := &fakeMarketData{observations: map[string][]dto.Observation{
		"^VIX": {{Date: day(1), Value: 18.0}},
	}}
	repo := newFakeIndicatorRepo()
	svc := NewIngesterService(cfg, repo, fred, yahoo, newTestLogger(t))

	results, err := svc.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byKey := make(map[string]dto.IngestResult)
	for _, r := range results {
		byKey[r.IndicatorKey] = r
	}
	assert.Equal(t, dto.IngestStatusFailed, byKey["nfci"].Status)
	assert.Equal(t, dto.IngestStatusSuccess, byKey["vix"].Status)
}

func TestIngestAllDerivedRatioComputedAfterInputs(t *testing.T) {
	cfg := &config.Config{Indicators: []config.IndicatorSpec{
		// Derived listed first on purpose; it must still run last.
		{Key: "market_breadth_ratio", DisplayName: "Breadth", Source: entity.IndicatorSourceDerived, SeriesID: "rsp/spy", Category: entity.CategoryEquities},
		{Key: "rsp", Source: entity.IndicatorSourceYahoo, SeriesID: "RSP", Category: entity.CategoryEquities},
		{Key: "spy", Source: entity.IndicatorSourceYahoo, SeriesID: "SPY", Category: entity.CategoryEquities},
	}}
	yahoo := &fakeMarketData{observations: map[string][]dto.Observation{
		"RSP": {{Date: day(1), Value: 160}, {Date: day(2), Value: 162}},
		"SPY": {{Date: day(1), Value: 640}, {Date: day(2), Value: 648}, {Date: day(3), Value: 650}},
	}}
	repo := newFakeIndicatorRepo()
	svc := NewIngesterService(cfg, repo, &fakeMarketData{}, yahoo, newTestLogger(t))

	results, err := svc.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "market_breadth_ratio", results[2].IndicatorKey)
	assert.Equal(t, dto.IngestStatusSuccess, results[2].Status)
	assert.Equal(t, 2, results[2].SampleCount)

	breadth := repo.indicators["market_breadth_ratio"]
	require.NotNil(t, breadth)
	assert.InDelta(t, 0.25, repo.samples[breadth.ID][day(1)], 1e-9)
	assert.InDelta(t, 0.25, repo.samples[breadth.ID][day(2)], 1e-9)
}

func TestIngestAllTwiceWithSamePayloadChangesNothing(t *testing.T) {
	cfg := &config.Config{Indicators: []config.IndicatorSpec{
		{Key: "vix", DisplayName: "VIX", Source: entity.IndicatorSourceYahoo, SeriesID: "^VIX", Category: entity.CategoryEquities},
		{Key: "rsp", DisplayName: "RSP", Source: entity.IndicatorSourceYahoo, SeriesID: "RSP", Category: entity.CategoryEquities},
		{Key: "spy", DisplayName: "SPY", Source: entity.IndicatorSourceYahoo, SeriesID: "SPY", Category: entity.CategoryEquities},
		{Key: "market_breadth_ratio", DisplayName: "Breadth", Source: entity.IndicatorSourceDerived, SeriesID: "rsp/spy", Category: entity.CategoryEquities},
	}}
	yahoo := &fakeMarketData{observations: map[string][]dto.Observation{
		"^VIX": {{Date: day(1), Value: 17.5}, {Date: day(2), Value: 18.0}},
		"RSP":  {{Date: day(1), Value: 162}},
		"SPY":  {{Date: day(1), Value: 648}},
	}}
	repo := newFakeIndicatorRepo()
	svc := NewIngesterService(cfg, repo, &fakeMarketData{}, yahoo, newTestLogger(t))

	_, err := svc.IngestAll(context.Background())
	require.NoError(t, err)

	indicatorsAfterFirst := len(repo.indicators)
	samplesAfterFirst := make(map[uint]map[time.Time]float64, len(repo.samples))
	for id, byDate := range repo.samples {
		copied := make(map[time.Time]float64, len(byDate))
		for date, value := range byDate {
			copied[date] = value
		}
		samplesAfterFirst[id] = copied
	}

	results, err := svc.IngestAll(context.Background())
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, dto.IngestStatusFailed, r.Status, r.IndicatorKey)
	}

	assert.Equal(t, indicatorsAfterFirst, len(repo.indicators))
	assert.Equal(t, samplesAfterFirst, repo.samples)
}

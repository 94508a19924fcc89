package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/dto"
)

func snap(pairs map[string]float64) dto.Snapshot {
	out := make(dto.Snapshot, len(pairs))
	for k, v := range pairs {
		out[k] = dto.Metric{Key: k, Value: v}
	}
	return out
}

func findByType(t *testing.T, alertType string) Detector {
	t.Helper()
	for _, d := range All() {
		if d.Type() == alertType {
			return d
		}
	}
	t.Fatalf("no detector of type %s", alertType)
	return nil
}

func TestVixSpike30(t *testing.T) {
	d := findByType(t, entity.AlertTypeVixSpike30)

	f := d.Evaluate(Input{Now: snap(map[string]float64{"vix": 31.5})})
	require.NotNil(t, f)
	assert.Equal(t, entity.SeverityCritical, f.Severity)
	assert.InDelta(t, 31.5, f.MetricValue, 1e-9)
	assert.InDelta(t, 30.0, f.Threshold, 1e-9)

	assert.Nil(t, d.Evaluate(Input{Now: snap(map[string]float64{"vix": 28.0})}))
	assert.Nil(t, d.Evaluate(Input{Now: dto.Snapshot{}}), "missing VIX never fires")
}

func TestVixSpike25Boundary(t *testing.T) {
	d := findByType(t, entity.AlertTypeVixSpike25)

	f := d.Evaluate(Input{Now: snap(map[string]float64{"vix": 25.0})})
	require.NotNil(t, f, "threshold is inclusive")
	assert.Equal(t, entity.SeverityWarning, f.Severity)
}

func TestCreditSpreadWidening(t *testing.T) {
	d := findByType(t, entity.AlertTypeCreditSpreadWidening)

	f := d.Evaluate(Input{
		Now:         snap(map[string]float64{"high_yield_spread": 4.40}),
		SevenDayAgo: snap(map[string]float64{"high_yield_spread": 3.80}),
	})
	require.NotNil(t, f)
	assert.InDelta(t, 4.40, f.MetricValue, 1e-9)

	assert.Nil(t, d.Evaluate(Input{
		Now:         snap(map[string]float64{"high_yield_spread": 4.20}),
		SevenDayAgo: snap(map[string]float64{"high_yield_spread": 3.80}),
	}), "40 bp is below the 50 bp threshold")

	assert.Nil(t, d.Evaluate(Input{
		Now: snap(map[string]float64{"high_yield_spread": 9.0}),
	}), "no 7-day-ago view, no trigger")
}

func TestYieldCurveChange(t *testing.T) {
	d := findByType(t, entity.AlertTypeYieldCurveChange)

	f := d.Evaluate(Input{
		Now:       snap(map[string]float64{"yield_curve_10y2y": -0.05}),
		OneDayAgo: snap(map[string]float64{"yield_curve_10y2y": 0.10}),
	})
	require.NotNil(t, f)
	assert.Contains(t, f.Title, "inverted")

	f = d.Evaluate(Input{
		Now:       snap(map[string]float64{"yield_curve_10y2y": 0.05}),
		OneDayAgo: snap(map[string]float64{"yield_curve_10y2y": -0.10}),
	})
	require.NotNil(t, f)
	assert.Contains(t, f.Title, "un-inverted")

	assert.Nil(t, d.Evaluate(Input{
		Now:       snap(map[string]float64{"yield_curve_10y2y": 0.50}),
		OneDayAgo: snap(map[string]float64{"yield_curve_10y2y": 0.40}),
	}))
}

func TestBreadthDeterioration(t *testing.T) {
	d := findByType(t, entity.AlertTypeBreadthDeterioration)

	in := Input{Now: dto.Snapshot{
		"market_breadth_ratio": dto.Metric{Value: 0.8, Percentile: 0.12, PercentileValid: true},
	}}
	require.NotNil(t, d.Evaluate(in))

	in.Now["market_breadth_ratio"] = dto.Metric{Value: 0.9, Percentile: 0.35, PercentileValid: true}
	assert.Nil(t, d.Evaluate(in))

	in.Now["market_breadth_ratio"] = dto.Metric{Value: 0.9}
	assert.Nil(t, d.Evaluate(in), "no percentile history, no trigger")
}

func TestExtremePercentile(t *testing.T) {
	d := findByType(t, entity.AlertTypeExtremePercentile)

	in := Input{Now: dto.Snapshot{
		"vix":       dto.Metric{Percentile: 0.97, PercentileValid: true},
		"gold":      dto.Metric{Percentile: 0.99, PercentileValid: true},
		"bitcoin":   dto.Metric{Percentile: 0.03, PercentileValid: true},
		"sp500":     dto.Metric{Percentile: 0.50, PercentileValid: true},
		"us_dollar": dto.Metric{Percentile: 0.60, PercentileValid: true},
	}}
	f := d.Evaluate(in)
	require.NotNil(t, f)
	assert.Equal(t, entity.SeverityInfo, f.Severity)
	assert.Equal(t, []string{"bitcoin", "gold", "vix"}, f.ExtremeIndicators)

	in.Now["bitcoin"] = dto.Metric{Percentile: 0.40, PercentileValid: true}
	assert.Nil(t, d.Evaluate(in), "two extremes are not enough")
}

func TestTogglesMapToPreferences(t *testing.T) {
	prefs := &entity.AlertPreference{
		VixThreshold25:             true,
		VixThreshold30:             false,
		CreditSpreadThreshold50bp:  true,
		YieldCurveInversion:        false,
		EquityBreadthDeterioration: true,
		ExtremePercentileEnabled:   false,
	}

	assert.True(t, findByType(t, entity.AlertTypeVixSpike25).Enabled(prefs))
	assert.False(t, findByType(t, entity.AlertTypeVixSpike30).Enabled(prefs))
	assert.True(t, findByType(t, entity.AlertTypeCreditSpreadWidening).Enabled(prefs))
	assert.False(t, findByType(t, entity.AlertTypeYieldCurveChange).Enabled(prefs))
	assert.True(t, findByType(t, entity.AlertTypeBreadthDeterioration).Enabled(prefs))
	assert.False(t, findByType(t, entity.AlertTypeExtremePercentile).Enabled(prefs))
}

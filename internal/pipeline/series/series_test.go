package series

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSamples(values ...float64) []Sample {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Sample, len(values))
	for i, v := range values {
		out[i] = Sample{Date: start.AddDate(0, 0, i), Value: v}
	}
	return out
}

func TestChange(t *testing.T) {
	samples := mkSamples(100, 102, 101, 105, 110, 108)

	abs, rel, ok := Change(samples, 5)
	require.True(t, ok)
	assert.InDelta(t, 8.0, abs, 1e-9)
	assert.InDelta(t, 0.08, rel, 1e-9)

	abs, _, ok = Change(samples, 1)
	require.True(t, ok)
	assert.InDelta(t, -2.0, abs, 1e-9)

	_, _, ok = Change(samples, 6)
	assert.False(t, ok, "needs n+1 samples")

	_, _, ok = Change(nil, 1)
	assert.False(t, ok)
}

func TestChangeZeroPrior(t *testing.T) {
	samples := mkSamples(0, 5)
	abs, rel, ok := Change(samples, 1)
	require.True(t, ok)
	assert.InDelta(t, 5.0, abs, 1e-9)
	assert.Zero(t, rel)
}

func TestPercentile(t *testing.T) {
	p, ok := Percentile(mkSamples(1, 2, 3, 4, 5))
	require.True(t, ok)
	assert.InDelta(t, 0.8, p, 1e-9, "4 of 5 below the latest")

	p, ok = Percentile(mkSamples(5, 4, 3, 2, 1))
	require.True(t, ok)
	assert.Zero(t, p)

	p, ok = Percentile(mkSamples(42))
	require.True(t, ok)
	assert.InDelta(t, 0.5, p, 1e-9, "length-1 convention")

	_, ok = Percentile(nil)
	assert.False(t, ok)
}

func TestPercentileBounded(t *testing.T) {
	samples := mkSamples(3, 1, 4, 1, 5, 9, 2, 6)
	p, ok := Percentile(samples)
	require.True(t, ok)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestPercentileMedianAppend(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 7}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	samples := append(mkSamples(values...), Sample{
		Date:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Value: median,
	})
	p, ok := Percentile(samples)
	require.True(t, ok)
	n := len(values)
	assert.GreaterOrEqual(t, p, 0.5-1.0/float64(n+1))
}

func TestZScore(t *testing.T) {
	samples := mkSamples(10, 10, 10, 10, 20)
	z, ok := ZScore(samples, 5)
	require.True(t, ok)
	assert.Greater(t, z, 1.0)

	_, ok = ZScore(mkSamples(10, 10, 10), 5)
	assert.False(t, ok, "window not filled")

	_, ok = ZScore(mkSamples(5, 5, 5, 5, 5), 5)
	assert.False(t, ok, "zero deviation")
}

func TestStd(t *testing.T) {
	assert.InDelta(t, 1.0, Std([]float64{1, 2, 3}), 1e-9)
	assert.Zero(t, Std([]float64{7}))
}

func TestResampleMonthEnd(t *testing.T) {
	samples := []Sample{
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Value: 1},
		{Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), Value: 2},
		{Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), Value: 3},
		{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Value: 9},
	}
	out := ResampleMonthEnd(samples)
	require.Len(t, out, 2)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), out[0].Date)
	assert.InDelta(t, 3.0, out[0].Value, 1e-9, "last observation of January wins")
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), out[1].Date)
}

func TestFillMissing(t *testing.T) {
	nan := math.NaN()
	out := FillMissing([]float64{nan, 1, nan, nan, 4, nan})
	assert.Equal(t, []float64{1, 1, 1, 1, 4, 4}, out)

	out = FillMissing([]float64{nan, nan})
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
}

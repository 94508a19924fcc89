// Package series provides pure derived-metric computations over ordered
// (date, value) samples. All functions expect samples sorted ascending by
// date and never mutate their inputs.
package series

import (
	"math"
	"time"
)

// Sample is a single dated observation.
type Sample struct {
	Date  time.Time
	Value float64
}

// Latest returns the most recent sample.
func Latest(samples []Sample) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	return samples[len(samples)-1], true
}

// Change returns the absolute and relative change between the latest sample
// and the sample n observations earlier. It reports ok=false when fewer than
// n+1 samples exist.
func Change(samples []Sample, n int) (absolute, relative float64, ok bool) {
	if n <= 0 || len(samples) < n+1 {
		return 0, 0, false
	}
	latest := samples[len(samples)-1].Value
	prior := samples[len(samples)-1-n].Value
	absolute = latest - prior
	if prior != 0 {
		relative = absolute / math.Abs(prior)
	}
	return absolute, relative, true
}

// Percentile returns the fraction of samples strictly less than the latest
// value. A series of length 1 returns 0.5 by convention.
func Percentile(samples []Sample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	if len(samples) == 1 {
		return 0.5, true
	}
	latest := samples[len(samples)-1].Value
	below := 0
	for _, s := range samples {
		if s.Value < latest {
			below++
		}
	}
	return float64(below) / float64(len(samples)), true
}

// Mean returns the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std returns the sample standard deviation (n-1 denominator) of the values.
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// ZScore returns the z-score of the latest value over a trailing window of
// the given size. It reports ok=false when the window cannot be filled or
// the window's deviation is zero.
func ZScore(samples []Sample, window int) (float64, bool) {
	if window < 2 || len(samples) < window {
		return 0, false
	}
	values := make([]float64, window)
	for i, s := range samples[len(samples)-window:] {
		values[i] = s.Value
	}
	std := Std(values)
	if std == 0 {
		return 0, false
	}
	return (values[window-1] - Mean(values)) / std, true
}

// TrailingStd returns the sample standard deviation of the last n values.
func TrailingStd(samples []Sample, n int) (float64, bool) {
	if n < 2 || len(samples) < n {
		return 0, false
	}
	values := make([]float64, n)
	for i, s := range samples[len(samples)-n:] {
		values[i] = s.Value
	}
	std := Std(values)
	if std == 0 {
		return 0, false
	}
	return std, true
}

// MonthEnd normalizes a time to the last calendar day of its month.
func MonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// ResampleMonthEnd keeps the last observation of each calendar month and
// stamps it with the month-end date. Input must be sorted ascending.
func ResampleMonthEnd(samples []Sample) []Sample {
	if len(samples) == 0 {
		return nil
	}
	var out []Sample
	for _, s := range samples {
		me := MonthEnd(s.Date)
		if len(out) > 0 && out[len(out)-1].Date.Equal(me) {
			out[len(out)-1].Value = s.Value
			continue
		}
		out = append(out, Sample{Date: me, Value: s.Value})
	}
	return out
}

// FillMissing forward-fills then back-fills NaN entries in place and returns
// the slice. Rows that remain NaN had no observed value at all.
func FillMissing(values []float64) []float64 {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}
	return values
}

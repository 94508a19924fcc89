// Package detector implements the per-user alert rules evaluated against
// fresh indicator snapshots.
package detector

import (
	"fmt"
	"sort"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/dto"
)

// Indicator keys consumed by the detectors.
const (
	keyVix             = "vix"
	keyHighYieldSpread = "high_yield_spread"
	keyYieldCurve      = "yield_curve_10y2y"
	keyMarketBreadth   = "market_breadth_ratio"
)

// Input carries the point-in-time views a detector may inspect.
type Input struct {
	Now         dto.Snapshot
	OneDayAgo   dto.Snapshot
	SevenDayAgo dto.Snapshot
}

// Finding is a triggered detector result, ready to become an alert event.
type Finding struct {
	Title             string
	Message           string
	Severity          string
	MetricName        string
	MetricValue       float64
	Threshold         float64
	ExtremeIndicators []string
}

// Detector is one alert rule. Evaluate returns nil when the rule does not
// trigger. Implementations must be pure over their input.
type Detector interface {
	Type() string
	Cooldown() time.Duration
	Enabled(prefs *entity.AlertPreference) bool
	Evaluate(in Input) *Finding
}

// All returns the full ordered detector list.
func All() []Detector {
	return []Detector{
		vixSpike{threshold: 25, alertType: entity.AlertTypeVixSpike25, severity: entity.SeverityWarning},
		vixSpike{threshold: 30, alertType: entity.AlertTypeVixSpike30, severity: entity.SeverityCritical},
		creditSpreadWidening{},
		yieldCurveChange{},
		breadthDeterioration{},
		extremePercentile{},
	}
}

// vixSpike fires when the VIX closes at or above its threshold.
type vixSpike struct {
	threshold float64
	alertType string
	severity  string
}

func (d vixSpike) Type() string            { return d.alertType }
func (d vixSpike) Cooldown() time.Duration { return 48 * time.Hour }

func (d vixSpike) Enabled(prefs *entity.AlertPreference) bool {
	if d.threshold >= 30 {
		return prefs.VixThreshold30
	}
	return prefs.VixThreshold25
}

func (d vixSpike) Evaluate(in Input) *Finding {
	m, ok := in.Now[keyVix]
	if !ok || m.Value < d.threshold {
		return nil
	}
	return &Finding{
		Title:       fmt.Sprintf("VIX above %.0f", d.threshold),
		Message:     fmt.Sprintf("VIX closed at %.1f, above the %.0f threshold.", m.Value, d.threshold),
		Severity:    d.severity,
		MetricName:  keyVix,
		MetricValue: m.Value,
		Threshold:   d.threshold,
	}
}

// creditSpreadWidening fires when high-yield spreads widen by at least 50 bp
// over seven days. Spread values are stored in percent.
type creditSpreadWidening struct{}

func (creditSpreadWidening) Type() string            { return entity.AlertTypeCreditSpreadWidening }
func (creditSpreadWidening) Cooldown() time.Duration { return 48 * time.Hour }

func (creditSpreadWidening) Enabled(prefs *entity.AlertPreference) bool {
	return prefs.CreditSpreadThreshold50bp
}

func (creditSpreadWidening) Evaluate(in Input) *Finding {
	now, okNow := in.Now[keyHighYieldSpread]
	prior, okPrior := in.SevenDayAgo[keyHighYieldSpread]
	if !okNow || !okPrior {
		return nil
	}
	wideningBp := (now.Value - prior.Value) * 100
	if wideningBp < 50 {
		return nil
	}
	return &Finding{
		Title:       "Credit spreads widening",
		Message:     fmt.Sprintf("High-yield spreads widened %.0f bp over the last week, from %.2f%% to %.2f%%.", wideningBp, prior.Value, now.Value),
		Severity:    entity.SeverityWarning,
		MetricName:  keyHighYieldSpread,
		MetricValue: now.Value,
		Threshold:   50,
	}
}

// yieldCurveChange fires when the 10Y-2Y spread flips sign versus the
// previous day.
type yieldCurveChange struct{}

func (yieldCurveChange) Type() string            { return entity.AlertTypeYieldCurveChange }
func (yieldCurveChange) Cooldown() time.Duration { return 72 * time.Hour }

func (yieldCurveChange) Enabled(prefs *entity.AlertPreference) bool {
	return prefs.YieldCurveInversion
}

func (yieldCurveChange) Evaluate(in Input) *Finding {
	now, okNow := in.Now[keyYieldCurve]
	prior, okPrior := in.OneDayAgo[keyYieldCurve]
	if !okNow || !okPrior {
		return nil
	}
	if (now.Value >= 0) == (prior.Value >= 0) {
		return nil
	}
	direction := "inverted"
	if now.Value >= 0 {
		direction = "un-inverted"
	}
	return &Finding{
		Title:       "Yield curve " + direction,
		Message:     fmt.Sprintf("The 10Y-2Y spread moved from %+.2f to %+.2f and has %s.", prior.Value, now.Value, direction),
		Severity:    entity.SeverityWarning,
		MetricName:  keyYieldCurve,
		MetricValue: now.Value,
		Threshold:   0,
	}
}

// breadthDeterioration fires when market breadth sits below its 20th
// historical percentile.
type breadthDeterioration struct{}

func (breadthDeterioration) Type() string            { return entity.AlertTypeBreadthDeterioration }
func (breadthDeterioration) Cooldown() time.Duration { return 48 * time.Hour }

func (breadthDeterioration) Enabled(prefs *entity.AlertPreference) bool {
	return prefs.EquityBreadthDeterioration
}

func (breadthDeterioration) Evaluate(in Input) *Finding {
	m, ok := in.Now[keyMarketBreadth]
	if !ok || !m.PercentileValid || m.Percentile >= 0.20 {
		return nil
	}
	return &Finding{
		Title:       "Equity breadth deteriorating",
		Message:     fmt.Sprintf("Market breadth is at the %.0fth percentile of its history.", m.Percentile*100),
		Severity:    entity.SeverityWarning,
		MetricName:  keyMarketBreadth,
		MetricValue: m.Value,
		Threshold:   0.20,
	}
}

// extremePercentile fires when at least three indicators sit at historical
// extremes, in either tail.
type extremePercentile struct{}

func (extremePercentile) Type() string            { return entity.AlertTypeExtremePercentile }
func (extremePercentile) Cooldown() time.Duration { return 24 * time.Hour }

func (extremePercentile) Enabled(prefs *entity.AlertPreference) bool {
	return prefs.ExtremePercentileEnabled
}

func (extremePercentile) Evaluate(in Input) *Finding {
	var extremes []string
	for key, m := range in.Now {
		if !m.PercentileValid {
			continue
		}
		if m.Percentile >= 0.95 || m.Percentile <= 0.05 {
			extremes = append(extremes, key)
		}
	}
	if len(extremes) < 3 {
		return nil
	}
	sort.Strings(extremes)
	return &Finding{
		Title:             "Multiple indicators at extremes",
		Message:           fmt.Sprintf("%d indicators are at historical extremes.", len(extremes)),
		Severity:          entity.SeverityInfo,
		MetricName:        "extreme_count",
		MetricValue:       float64(len(extremes)),
		Threshold:         3,
		ExtremeIndicators: extremes,
	}
}

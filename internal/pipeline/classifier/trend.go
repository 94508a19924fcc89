package classifier

import "signal-trackers/internal/entity"

// Confidence trend labels.
const (
	TrendImproving     = "improving"
	TrendDeteriorating = "deteriorating"
	TrendStable        = "stable"
)

const trendThreshold = 0.05

// ConfidenceTrend compares the short-run confidence level against the
// longer run. Confidences are ordered newest first, as the repository
// returns them. Fewer than three readings is always stable.
func ConfidenceTrend(confidences []string) string {
	if len(confidences) < 3 {
		return TrendStable
	}
	short := meanConfidence(confidences[:3])
	window := confidences
	if len(window) > 10 {
		window = window[:10]
	}
	long := meanConfidence(window)

	switch {
	case short-long > trendThreshold:
		return TrendImproving
	case long-short > trendThreshold:
		return TrendDeteriorating
	default:
		return TrendStable
	}
}

func meanConfidence(confidences []string) float64 {
	var sum float64
	for _, c := range confidences {
		sum += confidenceValue(c)
	}
	return sum / float64(len(confidences))
}

func confidenceValue(c string) float64 {
	switch c {
	case entity.ConfidenceHigh:
		return 0.9
	case entity.ConfidenceMedium:
		return 0.5
	default:
		return 0.2
	}
}

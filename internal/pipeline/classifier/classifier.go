// Package classifier maps recent macro indicator history to one of four
// labelled market regimes.
package classifier

import (
	"math"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/series"
)

// Indicator keys consumed by the classifier, in feature order.
const (
	KeyHighYieldSpread = "high_yield_spread"
	KeyYieldCurve      = "yield_curve_10y2y"
	KeyNFCI            = "nfci"
	KeyInitialClaims   = "initial_claims"
	KeyFedFunds        = "fed_funds_rate"
)

const (
	// HistoryMonths is the trailing window of monthly rows used for clustering.
	HistoryMonths = 60
	// minUsableRows is the minimum number of complete monthly rows required
	// before the k-means path is attempted.
	minUsableRows = 24

	featureCount = 5
	kClusters    = 4
)

var featureKeys = [featureCount]string{
	KeyHighYieldSpread, KeyYieldCurve, KeyNFCI, KeyInitialClaims, KeyFedFunds,
}

// stressWeights score a standardized feature vector. A steep yield curve is
// benign, hence the negative weight.
var stressWeights = [featureCount]float64{1.5, -1.5, 1.0, 1.0, 0.5}

// regimesByStress orders the four labels from calmest to most stressed.
var regimesByStress = [kClusters]string{
	entity.RegimeBull, entity.RegimeNeutral, entity.RegimeBear, entity.RegimeRecessionWatch,
}

// Result is the outcome of a classification run.
type Result struct {
	Regime      string
	Confidence  string
	StressScore float64
	Method      string
	Features    map[string]float64
	AsOf        time.Time
}

// Classify derives the current regime from daily history of the five input
// indicators. It prefers k-means over monthly-resampled data and falls back
// to threshold rules when fewer than 24 usable monthly rows exist.
func Classify(history map[string][]series.Sample) Result {
	rows, asOf := buildMonthlyMatrix(history)
	if len(rows) >= minUsableRows {
		return classifyKMeans(rows, asOf)
	}
	return classifyRules(history)
}

// buildMonthlyMatrix resamples each input series to month-end, aligns the
// series over the trailing window, fills gaps, and drops incomplete rows.
func buildMonthlyMatrix(history map[string][]series.Sample) ([][featureCount]float64, time.Time) {
	monthly := make(map[string][]series.Sample, featureCount)
	var firstMonth, lastMonth time.Time
	for _, key := range featureKeys {
		resampled := series.ResampleMonthEnd(history[key])
		monthly[key] = resampled
		if n := len(resampled); n > 0 {
			if resampled[n-1].Date.After(lastMonth) {
				lastMonth = resampled[n-1].Date
			}
			if firstMonth.IsZero() || resampled[0].Date.Before(firstMonth) {
				firstMonth = resampled[0].Date
			}
		}
	}
	if lastMonth.IsZero() {
		return nil, time.Time{}
	}

	// The month axis spans only observed months, clipped to the trailing
	// window, so thin histories stay thin and trigger the rule fallback.
	if windowStart := shiftMonthEnd(lastMonth, -HistoryMonths+1); firstMonth.Before(windowStart) {
		firstMonth = windowStart
	}
	var months []time.Time
	for m := firstMonth; !m.After(lastMonth); m = shiftMonthEnd(m, 1) {
		months = append(months, m)
	}

	columns := make([][]float64, featureCount)
	for f, key := range featureKeys {
		col := make([]float64, len(months))
		for i := range col {
			col[i] = math.NaN()
		}
		byMonth := make(map[time.Time]float64, len(monthly[key]))
		for _, s := range monthly[key] {
			byMonth[s.Date] = s.Value
		}
		for i, m := range months {
			if v, ok := byMonth[m]; ok {
				col[i] = v
			}
		}
		columns[f] = series.FillMissing(col)
	}

	var rows [][featureCount]float64
	for i := range months {
		var row [featureCount]float64
		complete := true
		for f := range featureKeys {
			v := columns[f][i]
			if math.IsNaN(v) {
				complete = false
				break
			}
			row[f] = v
		}
		if complete {
			rows = append(rows, row)
		}
	}
	return rows, lastMonth
}

func classifyKMeans(rows [][featureCount]float64, asOf time.Time) Result {
	standardized := standardize(rows)
	centroids, assignments := fitKMeans(standardized)

	// Order centroids by ascending stress and map to the regime labels.
	order := make([]int, kClusters)
	for i := range order {
		order[i] = i
	}
	scores := make([]float64, kClusters)
	for i, c := range centroids {
		scores[i] = stressScore(c)
	}
	// Insertion sort keeps ties in original centroid order.
	for i := 1; i < kClusters; i++ {
		for j := i; j > 0 && scores[order[j]] < scores[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	labelByCluster := make(map[int]string, kClusters)
	for rank, cluster := range order {
		labelByCluster[cluster] = regimesByStress[rank]
	}

	latest := standardized[len(standardized)-1]
	cluster := nearestCentroid(latest, centroids)

	// Confidence from the observation's distance relative to the mean
	// intra-cluster distance of its assigned cluster.
	var sum float64
	var n int
	for i, a := range assignments {
		if a == cluster {
			sum += distance(standardized[i], centroids[cluster])
			n++
		}
	}
	confidence := entity.ConfidenceHigh
	if n > 0 && sum > 0 {
		ratio := distance(latest, centroids[cluster]) / (sum / float64(n))
		switch {
		case ratio <= 0.5:
			confidence = entity.ConfidenceHigh
		case ratio <= 1.5:
			confidence = entity.ConfidenceMedium
		default:
			confidence = entity.ConfidenceLow
		}
	}

	raw := rows[len(rows)-1]
	return Result{
		Regime:      labelByCluster[cluster],
		Confidence:  confidence,
		StressScore: stressScore(latest),
		Method:      entity.RegimeMethodKMeans,
		Features:    featureMap(raw),
		AsOf:        asOf,
	}
}

// classifyRules is the threshold fallback used when monthly history is too
// short for clustering.
func classifyRules(history map[string][]series.Sample) Result {
	latest := func(key string) (float64, bool) {
		s, ok := series.Latest(history[key])
		return s.Value, ok
	}

	var score int
	features := make(map[string]float64, featureCount)
	var asOf time.Time

	if v, ok := latest(KeyHighYieldSpread); ok {
		features[KeyHighYieldSpread] = v
		switch {
		case v >= 6.0:
			score += 3
		case v >= 4.5:
			score += 2
		case v >= 3.0:
			score++
		}
	}
	if v, ok := latest(KeyYieldCurve); ok {
		features[KeyYieldCurve] = v
		switch {
		case v < -0.5:
			score += 3
		case v < 0:
			score++
		}
	}
	if v, ok := latest(KeyNFCI); ok {
		features[KeyNFCI] = v
		switch {
		case v > 0.5:
			score += 2
		case v > 0:
			score++
		}
	}
	if v, ok := latest(KeyInitialClaims); ok {
		features[KeyInitialClaims] = v
		switch {
		case v > 400:
			score += 2
		case v > 300:
			score++
		}
	}
	if v, ok := latest(KeyFedFunds); ok {
		features[KeyFedFunds] = v
	}
	for _, key := range featureKeys {
		if s, ok := series.Latest(history[key]); ok && s.Date.After(asOf) {
			asOf = s.Date
		}
	}

	var regime string
	switch {
	case score >= 7:
		regime = entity.RegimeRecessionWatch
	case score >= 4:
		regime = entity.RegimeBear
	case score >= 2:
		regime = entity.RegimeNeutral
	default:
		regime = entity.RegimeBull
	}

	return Result{
		Regime:      regime,
		Confidence:  entity.ConfidenceNone,
		StressScore: float64(score),
		Method:      entity.RegimeMethodRule,
		Features:    features,
		AsOf:        asOf,
	}
}

// shiftMonthEnd moves a month-end date by n months, landing on the last day
// of the target month. Plain AddDate misbehaves on day-31 dates.
func shiftMonthEnd(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(n)+1, 0, 0, 0, 0, 0, time.UTC)
}

func standardize(rows [][featureCount]float64) [][featureCount]float64 {
	out := make([][featureCount]float64, len(rows))
	for f := 0; f < featureCount; f++ {
		var sum float64
		for _, row := range rows {
			sum += row[f]
		}
		mean := sum / float64(len(rows))
		var sq float64
		for _, row := range rows {
			d := row[f] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(len(rows)))
		if std == 0 {
			std = 1
		}
		for i, row := range rows {
			out[i][f] = (row[f] - mean) / std
		}
	}
	return out
}

func stressScore(v [featureCount]float64) float64 {
	var score float64
	for f := 0; f < featureCount; f++ {
		score += stressWeights[f] * v[f]
	}
	return score
}

func featureMap(row [featureCount]float64) map[string]float64 {
	out := make(map[string]float64, featureCount)
	for f, key := range featureKeys {
		out[key] = row[f]
	}
	return out
}

func distance(a, b [featureCount]float64) float64 {
	var sum float64
	for f := 0; f < featureCount; f++ {
		d := a[f] - b[f]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func nearestCentroid(point [featureCount]float64, centroids [][featureCount]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := distance(point, c); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

package classifier

import (
	"math"
	"math/rand"
)

const (
	kmeansSeed       = 42
	kmeansRestarts   = 20
	kmeansIterations = 300
)

// fitKMeans runs Lloyd's algorithm with a fixed seed and multiple restarts,
// returning the centroids and per-row assignments of the best run by total
// within-cluster squared distance.
func fitKMeans(rows [][featureCount]float64) ([][featureCount]float64, []int) {
	rng := rand.New(rand.NewSource(kmeansSeed))

	var bestCentroids [][featureCount]float64
	var bestAssignments []int
	bestInertia := math.Inf(1)

	for restart := 0; restart < kmeansRestarts; restart++ {
		centroids := initCentroids(rows, rng)
		assignments := make([]int, len(rows))

		for iter := 0; iter < kmeansIterations; iter++ {
			changed := false
			for i, row := range rows {
				c := nearestCentroid(row, centroids)
				if c != assignments[i] {
					assignments[i] = c
					changed = true
				}
			}
			if iter > 0 && !changed {
				break
			}

			var sums [kClusters][featureCount]float64
			var counts [kClusters]int
			for i, row := range rows {
				c := assignments[i]
				counts[c]++
				for f := 0; f < featureCount; f++ {
					sums[c][f] += row[f]
				}
			}
			for c := 0; c < kClusters; c++ {
				// Empty clusters keep their previous centroid.
				if counts[c] == 0 {
					continue
				}
				for f := 0; f < featureCount; f++ {
					centroids[c][f] = sums[c][f] / float64(counts[c])
				}
			}
		}

		var inertia float64
		for i, row := range rows {
			d := distance(row, centroids[assignments[i]])
			inertia += d * d
		}
		if inertia < bestInertia {
			bestInertia = inertia
			bestCentroids = centroids
			bestAssignments = assignments
		}
	}
	return bestCentroids, bestAssignments
}

// initCentroids samples k starting centroids from the rows, preferring
// distinct values so that duplicated observations do not collapse the run.
func initCentroids(rows [][featureCount]float64, rng *rand.Rand) [][featureCount]float64 {
	centroids := make([][featureCount]float64, kClusters)
	perm := rng.Perm(len(rows))
	picked := 0
	for _, idx := range perm {
		candidate := rows[idx]
		duplicate := false
		for _, c := range centroids[:picked] {
			if distance(candidate, c) == 0 {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		centroids[picked] = candidate
		picked++
		if picked == kClusters {
			return centroids
		}
	}
	// Not enough distinct rows; fill the remainder with repeats.
	for picked < kClusters {
		centroids[picked] = rows[perm[picked%len(perm)]]
		picked++
	}
	return centroids
}

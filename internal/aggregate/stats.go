package aggregate

import "sort"

// ScoreStats summarizes one score's distribution across documents. Count is
// the number of documents that produced the score; documents where the
// metric was undefined are absent, not zero.
type ScoreStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// summarize computes distribution statistics over raw samples.
func summarize(samples []float64) *ScoreStats {
	s := &ScoreStats{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(len(sorted))
	s.Median = percentile(sorted, 50)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	return s
}

// percentile calculates the p-th percentile from a sorted slice of values,
// interpolating linearly between neighbors.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := (p / 100.0) * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

package sim

import (
	"math"
	"slices"
)

// Stats summarizes a sample of pull counts.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median int     `json:"median"` // lower-middle element for even samples
	P90    int     `json:"p90"`
	P99    int     `json:"p99"`
}

// calcStats computes mean/stddev/percentiles for integer samples.
// xs is sorted in place.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	// mean
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// variance (population)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}

	slices.Sort(xs)
	// nearest rank; pull costs stay integers
	rank := func(p float64) int {
		i := int(math.Ceil(p*float64(n))) - 1
		return xs[min(max(i, 0), n-1)]
	}

	return Stats{
		Mean:   mean,
		StdDev: math.Sqrt(acc / float64(n)),
		Median: xs[(n-1)/2],
		P90:    rank(0.90),
		P99:    rank(0.99),
	}
}

func frac(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Package stats provides the robust statistics used by the CTE correction
// and fitting code: medians, sigma-clipped moments, and clamping.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Clamp restricts v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Median returns the median of x.  x is not modified.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}

// SigmaClipped returns the mean, median and standard deviation of x after
// iteratively rejecting points more than sigma standard deviations from the
// median, up to maxiters passes or until no further points are rejected.
func SigmaClipped(x []float64, sigma float64, maxiters int) (mean, median, std float64) {
	kept := make([]float64, len(x))
	copy(kept, x)
	for iter := 0; iter < maxiters; iter++ {
		if len(kept) < 2 {
			break
		}
		med := Median(kept)
		sd := stat.StdDev(kept, nil)
		if sd == 0 {
			break
		}
		next := kept[:0]
		for _, v := range kept {
			if v >= med-sigma*sd && v <= med+sigma*sd {
				next = append(next, v)
			}
		}
		if len(next) == len(kept) {
			kept = next
			break
		}
		kept = next
	}
	if len(kept) == 0 {
		return 0, 0, 0
	}
	mean = stat.Mean(kept, nil)
	median = Median(kept)
	if len(kept) > 1 {
		std = stat.StdDev(kept, nil)
	}
	return mean, median, std
}

// SigmaClippedDefault applies the conventional 3-sigma, 5-iteration clip.
func SigmaClippedDefault(x []float64) (mean, median, std float64) {
	return SigmaClipped(x, 3.0, 5)
}

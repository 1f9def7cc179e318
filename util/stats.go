package util

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	sd := 0.0
	for _, x := range xs {
		sd += (x - mean) * (x - mean)
	}
	return math.Sqrt(sd / float64(len(xs)))
}

// CoefficientOfVariation returns stddev/mean. A zero mean yields 0 since
// every value is then identical (or the slice is empty).
func CoefficientOfVariation(xs []float64) float64 {
	mean := Mean(xs)
	if mean == 0 {
		return 0
	}
	return StdDev(xs) / mean
}

// Median returns the median of xs without modifying it
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MinMax returns the smallest and largest value of xs
func MinMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// Quantile returns the q-th quantile of an already sorted slice using the
// nearest rank on the zero based index
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[Round(q*float64(len(sorted)-1))]
}

// BowleySkew measures the symmetry of a sorted distribution.
// Bowley skew is unreliable if Q2 = Q1 or Q2 = Q3, so 0 is returned then.
func BowleySkew(sorted []float64) float64 {
	low := Quantile(sorted, .25)
	mid := Quantile(sorted, .5)
	high := Quantile(sorted, .75)
	den := high - low
	if den == 0 || mid == low || mid == high {
		return 0
	}
	return (low + high - 2*mid) / den
}

// MedianAbsoluteDeviation returns the median absolute deviation about the
// median of xs
func MedianAbsoluteDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mid := Median(xs)
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - mid)
	}
	return Median(devs)
}

// ShannonEntropy returns the entropy in bits of the character distribution of s
func ShannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	return entropyOfCounts(counts, total)
}

// CountEntropy returns the entropy in bits of a frequency table
func CountEntropy(counts map[int64]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	return entropyOfCounts(counts, total)
}

func entropyOfCounts[K comparable](counts map[K]int, total int) float64 {
	// summing in a fixed order keeps repeated runs bit for bit identical
	freqs := make([]int, 0, len(counts))
	for _, c := range counts {
		if c > 0 {
			freqs = append(freqs, c)
		}
	}
	sort.Ints(freqs)
	h := 0.0
	for _, c := range freqs {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return math.Abs(h)
}

package util

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// TimeFormat stores a correctly formatted timestamp
const TimeFormat string = "2006-01-02-T15:04:05-0700"

// Round returns rounded int64
func Round(f float64) int64 {
	return int64(math.Floor(f + .5))
}

// Clamp01 bounds f to [0, 1]. NaN collapses to 0.
func Clamp01(f float64) float64 {
	return Clamp(f, 0, 1)
}

// Clamp bounds f to [lo, hi]. NaN collapses to lo.
func Clamp(f, lo, hi float64) float64 {
	if math.IsNaN(f) || f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// CeilTo rounds f up to the given number of decimal places
func CeilTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Ceil(f*p) / p
}

// SortedKeys returns the keys of a string set in ascending order
func SortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const (
	day  = time.Minute * 60 * 24
	year = 365 * day
)

// FormatDuration properly prints a given time.Duration
// https://gist.github.com/harshavardhana/327e0577c4fed9211f65#gistcomment-2557682
func FormatDuration(d time.Duration) string {
	if d < day {
		return d.String()
	}

	var b strings.Builder

	if d >= year {
		years := d / year
		fmt.Fprintf(&b, "%dy", years)
		d -= years * year
	}

	days := d / day
	d -= days * day
	fmt.Fprintf(&b, "%dd%s", days, d)

	return b.String()
}

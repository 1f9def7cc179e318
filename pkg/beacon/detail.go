package beacon

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/activecm/threatfuse/pkg/store"
)

// ErrNoConnections is returned by Detail when the pair never communicated
var ErrNoConnections = errors.New("no connections between the given hosts")

// timeBucketCount is the number of slices the pair's span is divided into
const timeBucketCount = 24

type (
	//HistogramBin is a distinct value and the number of times it was observed
	HistogramBin struct {
		Value float64 `json:"value"`
		Count int     `json:"count"`
	}

	//Detail is the raw series behind a beacon score for a single host pair
	Detail struct {
		Key               Key            `json:"key"`
		Timestamps        []time.Time    `json:"timestamps"`
		Intervals         []float64      `json:"intervals"`
		IntervalHistogram []HistogramBin `json:"interval_histogram"`
		SizeHistogram     []HistogramBin `json:"size_histogram"`
		BucketDivs        []int64        `json:"bucket_divs"`
		TimeBuckets       []int          `json:"time_buckets"`
		Finding           *Finding       `json:"finding"`
	}
)

// Detail scores the connections from srcIP to dstIP with no allowlist and
// no thresholds. When the pair used several tuples the busiest one is used.
func (d *Detector) Detail(s *store.Store, srcIP, dstIP string) (*Detail, error) {
	groups := make(map[Key][]observation)
	for _, c := range s.Connections(store.Filter{SrcIP: srcIP, DstIP: dstIP}) {
		key := Key{SrcIP: c.SrcIP, DstIP: c.DstIP, DstPort: c.DstPort, Proto: c.Proto, Service: c.Service}
		groups[key] = append(groups[key], observation{ts: c.Timestamp, bytes: c.OrigBytes})
	}
	if len(groups) == 0 {
		return nil, ErrNoConnections
	}

	var key Key
	var obs []observation
	for k, o := range groups {
		if len(o) > len(obs) || (len(o) == len(obs) && k.String() < key.String()) {
			key, obs = k, o
		}
	}
	sortObservations(obs)

	a := &analyzer{conf: d.conf}

	detail := &Detail{
		Key:        key,
		Timestamps: make([]time.Time, len(obs)),
		Intervals:  intervals(obs),
		Finding:    a.analyze(key, obs),
	}
	tsList := make([]int64, len(obs))
	for i, o := range obs {
		detail.Timestamps[i] = o.ts
		tsList[i] = o.ts.Unix()
	}
	detail.IntervalHistogram = countValues(detail.Intervals, func(v float64) float64 { return math.Round(v) })
	detail.SizeHistogram = countValues(sizes(obs), func(v float64) float64 { return v })
	detail.BucketDivs = createBuckets(tsList[0], tsList[len(tsList)-1], timeBucketCount)
	detail.TimeBuckets = createHistogram(tsList[0], tsList[len(tsList)-1], timeBucketCount, tsList)
	return detail, nil
}

// countValues returns the distinct values in ascending order with the
// number of times each occurred
func countValues(values []float64, norm func(float64) float64) []HistogramBin {
	counts := make(map[float64]int)
	for _, v := range values {
		counts[norm(v)]++
	}
	bins := make([]HistogramBin, 0, len(counts))
	for v, c := range counts {
		bins = append(bins, HistogramBin{Value: v, Count: c})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Value < bins[j].Value })
	return bins
}

// createBuckets returns size+1 evenly spaced dividers from min to max
func createBuckets(min int64, max int64, size int64) []int64 {
	total := size + 1
	bucketDivs := make([]int64, total)
	step := (max - min) / (total - 1)

	bucketDivs[0] = min
	for i := int64(1); i < total; i++ {
		bucketDivs[i] = min + (i * step)
	}
	// the last divider absorbs the remainder of the integer division
	bucketDivs[total-1] = max

	return bucketDivs
}

// createHistogram counts the timestamps falling in each of size equal
// slices of [min, max]. The final timestamp lands in the last slice.
func createHistogram(min int64, max int64, size int, tsList []int64) []int {
	freqList := make([]int, size)
	width := max - min
	for _, ts := range tsList {
		i := 0
		if width > 0 {
			i = int((ts - min) * int64(size) / width)
		}
		if i >= size {
			i = size - 1
		}
		if i < 0 {
			i = 0
		}
		freqList[i]++
	}
	return freqList
}

package beacon

import (
	"testing"

	"github.com/activecm/threatfuse/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetail(t *testing.T) {
	s := store.New()
	addSeries(s, "192.0.2.10", "203.0.113.5", 443, "ssl", regular(20, 60))
	// a quieter tuple between the same hosts is ignored
	addSeries(s, "192.0.2.10", "203.0.113.5", 80, "http", regular(3, 600))

	detail, err := newTestDetector().Detail(s, "192.0.2.10", "203.0.113.5")
	require.NoError(t, err)

	assert.Equal(t, 443, detail.Key.DstPort)
	assert.Len(t, detail.Timestamps, 20)
	assert.Len(t, detail.Intervals, 19)
	assert.Equal(t, []HistogramBin{{Value: 60, Count: 19}}, detail.IntervalHistogram)
	assert.Equal(t, []HistogramBin{{Value: 512, Count: 20}}, detail.SizeHistogram)
	assert.Len(t, detail.BucketDivs, timeBucketCount+1)
	assert.Equal(t, start.Unix(), detail.BucketDivs[0])
	assert.Equal(t, start.Unix()+1140, detail.BucketDivs[timeBucketCount])

	total := 0
	for _, c := range detail.TimeBuckets {
		total += c
	}
	assert.Equal(t, 20, total)
	require.NotNil(t, detail.Finding)
	assert.GreaterOrEqual(t, detail.Finding.Score(), 90.0)
}

func TestDetailIgnoresThresholdsAndAllowlist(t *testing.T) {
	s := store.New()
	addSeries(s, "10.0.0.5", "8.8.8.8", 53, "dns", regular(3, 10))

	detail, err := newTestDetector().Detail(s, "10.0.0.5", "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Finding.Count)
	assert.Contains(t, detail.Finding.Techniques(), "T1071.004")
}

func TestDetailSingleConnection(t *testing.T) {
	s := store.New()
	addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", []float64{0})

	detail, err := newTestDetector().Detail(s, "10.0.0.5", "198.51.100.20")
	require.NoError(t, err)
	assert.Empty(t, detail.Intervals)
	assert.Equal(t, []int{1}, detail.TimeBuckets[:1])
	assert.Equal(t, 0.0, detail.Finding.Interval.JitterPct)
}

func TestDetailNoConnections(t *testing.T) {
	_, err := newTestDetector().Detail(store.New(), "10.0.0.5", "198.51.100.20")
	assert.Equal(t, ErrNoConnections, err)
}

func TestHistogramConcentration(t *testing.T) {
	assert.Equal(t, 1.0, histogramConcentration(nil, 0))
	assert.Equal(t, 1.0, histogramConcentration([]float64{60}, 60))
	assert.Equal(t, 1.0, histogramConcentration([]float64{60, 60, 60, 60}, 60))
	// four intervals in four separate bins is maximal entropy
	assert.InDelta(t, 0.0, histogramConcentration([]float64{10, 50, 100, 200}, 90), 1e-9)

	mixed := histogramConcentration([]float64{60, 60, 60, 120}, 75)
	assert.Greater(t, mixed, 0.0)
	assert.Less(t, mixed, 1.0)
}

func TestCreateHistogram(t *testing.T) {
	buckets := createHistogram(0, 240, 24, []int64{0, 5, 10, 239, 240})
	assert.Len(t, buckets, 24)
	assert.Equal(t, 2, buckets[0])
	assert.Equal(t, 1, buckets[1])
	assert.Equal(t, 2, buckets[23])
}

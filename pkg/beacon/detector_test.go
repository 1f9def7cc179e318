package beacon

import (
	"net"
	"testing"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// addSeries inserts connections from src to dst at the given offsets in seconds
func addSeries(s *store.Store, src, dst string, port int, service string, offsets []float64) {
	for _, off := range offsets {
		s.InsertConnection(data.Connection{
			Timestamp: start.Add(time.Duration(off * float64(time.Second))),
			SrcIP:     src,
			SrcPort:   40000,
			DstIP:     dst,
			DstPort:   port,
			Proto:     "tcp",
			Service:   service,
			Duration:  0.5,
			OrigBytes: 512,
			RespBytes: 1024,
		})
	}
}

// regular returns count offsets spaced interval seconds apart
func regular(count int, interval float64) []float64 {
	offsets := make([]float64, count)
	for i := range offsets {
		offsets[i] = float64(i) * interval
	}
	return offsets
}

func newTestDetector() *Detector {
	return NewDetector(DefaultConfig(), NewDefaultAllowlist(nil), nil)
}

func TestScenarioFixedIntervalBeacon(t *testing.T) {
	s := store.New()
	addSeries(s, "192.0.2.10", "203.0.113.5", 443, "ssl", regular(20, 60))

	results := newTestDetector().Analyze(s)
	require.Len(t, results, 1)

	f := results[0]
	assert.Equal(t, Key{SrcIP: "192.0.2.10", DstIP: "203.0.113.5", DstPort: 443, Proto: "tcp", Service: "ssl"}, f.Key)
	assert.Equal(t, 20, f.Count)
	assert.GreaterOrEqual(t, f.Score(), 90.0)
	assert.Greater(t, f.Confidence(), 0.5)
	assert.Contains(t, f.Techniques(), mitre.ApplicationLayerProtocol)
	assert.Contains(t, f.Techniques(), mitre.WebProtocols)
	assert.InDelta(t, 60.0, f.Interval.Mean, 1e-9)
	assert.InDelta(t, 0.0, f.Interval.JitterPct, 1e-9)
	assert.Equal(t, 1140.0, f.SpanSeconds)
	assert.Equal(t, start, f.FirstSeen())
	assert.Equal(t, start.Add(19*time.Minute), f.LastSeen())
}

func TestZeroJitterLargeSampleScoresHigh(t *testing.T) {
	cases := []struct {
		count    int
		interval float64
		sizes    []int64
	}{
		{20, 30, nil},
		{20, 60, nil},
		{35, 120, nil},
		{100, 600, nil},
		// window just past the minimum with wildly varying payloads
		{20, 16, []int64{100, 20000}},
		{40, 8, []int64{64, 1500, 90000}},
	}
	for _, tc := range cases {
		s := store.New()
		for i, off := range regular(tc.count, tc.interval) {
			size := int64(512)
			if len(tc.sizes) > 0 {
				size = tc.sizes[i%len(tc.sizes)]
			}
			s.InsertConnection(data.Connection{
				Timestamp: start.Add(time.Duration(off * float64(time.Second))),
				SrcIP:     "10.0.0.5",
				SrcPort:   40000,
				DstIP:     "198.51.100.20",
				DstPort:   8080,
				Proto:     "tcp",
				Service:   "http",
				Duration:  0.5,
				OrigBytes: size,
				RespBytes: 1024,
			})
		}
		results := newTestDetector().Analyze(s)
		require.Len(t, results, 1, "count %d interval %.0f", tc.count, tc.interval)
		f := results[0]
		assert.InDelta(t, 0.0, f.Interval.JitterPct, 1e-9)
		assert.GreaterOrEqual(t, f.Score(), 90.0, "count %d interval %.0f", tc.count, tc.interval)
		assert.Equal(t, 1.0, f.Components.Window, "count %d interval %.0f", tc.count, tc.interval)
	}
}

func TestJitterAboveMaximumIsDiscarded(t *testing.T) {
	// alternating 30s and 90s gaps give a 50% jitter
	var offsets []float64
	ts := 0.0
	for i := 0; i < 41; i++ {
		offsets = append(offsets, ts)
		if i%2 == 0 {
			ts += 30
		} else {
			ts += 90
		}
	}
	s := store.New()
	addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", offsets)

	assert.Empty(t, newTestDetector().Analyze(s))

	conf := DefaultConfig()
	conf.MaxJitterPct = 60
	results := NewDetector(conf, nil, nil).Analyze(s)
	require.Len(t, results, 1)
	assert.InDelta(t, 50.0, results[0].Interval.JitterPct, 1e-6)
}

func TestMinimumConnectionBoundary(t *testing.T) {
	conf := DefaultConfig()

	below := store.New()
	addSeries(below, "10.0.0.5", "198.51.100.20", 443, "ssl", regular(conf.MinConnections-1, 60))
	assert.Empty(t, NewDetector(conf, nil, nil).Analyze(below))

	exact := store.New()
	addSeries(exact, "10.0.0.5", "198.51.100.20", 443, "ssl", regular(conf.MinConnections, 60))
	results := NewDetector(conf, nil, nil).Analyze(exact)
	require.Len(t, results, 1)
	assert.Equal(t, conf.MinConnections, results[0].Count)
}

func TestShortWindowIsDiscarded(t *testing.T) {
	s := store.New()
	// 19 gaps of 10s span 190s, below the 300s minimum
	addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", regular(20, 10))
	assert.Empty(t, newTestDetector().Analyze(s))
}

func TestAllowlist(t *testing.T) {
	s := store.New()
	addSeries(s, "10.0.0.5", "8.8.8.8", 443, "ssl", regular(20, 60))
	addSeries(s, "10.0.0.5", "198.51.100.53", 53, "dns", regular(20, 60))
	addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", regular(20, 60))

	results := newTestDetector().Analyze(s)
	require.Len(t, results, 1)
	assert.Equal(t, "198.51.100.20", results[0].Key.DstIP)

	conf := DefaultConfig()
	conf.IncludeAllowlisted = true
	results = NewDetector(conf, NewDefaultAllowlist(nil), nil).Analyze(s)
	assert.Len(t, results, 3)

	custom := AllowlistFunc(func(src, dst string, port int, service string) bool {
		return dst == "198.51.100.20"
	})
	results = NewDetector(DefaultConfig(), custom, nil).Analyze(s)
	require.Len(t, results, 2)
	for _, f := range results {
		assert.NotEqual(t, "198.51.100.20", f.Key.DstIP)
	}
}

func TestDefaultAllowlistNetworks(t *testing.T) {
	_, block, err := net.ParseCIDR("203.0.113.0/24")
	require.NoError(t, err)
	allow := NewDefaultAllowlist([]*net.IPNet{block})

	assert.True(t, allow.IsAllowed("10.0.0.5", "203.0.113.7", 443, "ssl"))
	assert.True(t, allow.IsAllowed("10.0.0.5", "1.1.1.1", 443, "ssl"))
	assert.True(t, allow.IsAllowed("10.0.0.5", "198.51.100.1", 123, ""))
	assert.True(t, allow.IsAllowed("10.0.0.5", "198.51.100.1", 5353, "DNS"))
	assert.False(t, allow.IsAllowed("10.0.0.5", "198.51.100.1", 443, "ssl"))
}

func TestTechniques(t *testing.T) {
	assert.Equal(t, []string{"T1071", "T1071.001", "T1573"}, techniques(443, 95).Items())
	assert.Equal(t, []string{"T1071", "T1071.001"}, techniques(443, 70).Items())
	assert.Equal(t, []string{"T1071", "T1071.001"}, techniques(80, 95).Items())
	assert.Equal(t, []string{"T1071", "T1071.004"}, techniques(53, 95).Items())
	assert.Equal(t, []string{"T1071"}, techniques(4444, 95).Items())
}

func TestScoreIsMonotonicInSampleSize(t *testing.T) {
	prev := 0.0
	for count := 10; count <= 40; count += 5 {
		s := store.New()
		addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", regular(count, 60))
		results := newTestDetector().Analyze(s)
		require.Len(t, results, 1)
		assert.GreaterOrEqual(t, results[0].Score(), prev)
		prev = results[0].Score()
	}
}

func TestResultsAreOrderedAndDeterministic(t *testing.T) {
	s := store.New()
	addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", regular(12, 60))
	addSeries(s, "10.0.0.6", "198.51.100.21", 443, "ssl", regular(40, 60))
	addSeries(s, "10.0.0.7", "198.51.100.22", 443, "ssl", regular(40, 60))

	d := newTestDetector()
	first := d.Analyze(s)
	second := d.Analyze(s)
	require.Len(t, first, 3)
	assert.Equal(t, first, second)

	assert.Equal(t, "10.0.0.6", first[0].Key.SrcIP)
	assert.Equal(t, "10.0.0.7", first[1].Key.SrcIP)
	assert.Equal(t, "10.0.0.5", first[2].Key.SrcIP)
}

func TestUnsortedInsertionOrder(t *testing.T) {
	offsets := regular(20, 60)
	reversed := make([]float64, len(offsets))
	for i, off := range offsets {
		reversed[len(offsets)-1-i] = off
	}
	s := store.New()
	addSeries(s, "10.0.0.5", "198.51.100.20", 443, "ssl", reversed)

	results := newTestDetector().Analyze(s)
	require.Len(t, results, 1)
	assert.InDelta(t, 60.0, results[0].Interval.Mean, 1e-9)
}

func TestEmptyStore(t *testing.T) {
	assert.Empty(t, newTestDetector().Analyze(store.New()))
}

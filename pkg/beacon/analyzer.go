package beacon

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/util"
)

// component weights of the beacon score
const (
	regularityWeight = 0.40
	sampleWeight     = 0.25
	windowWeight     = 0.15
	sizeWeight       = 0.10
	histogramWeight  = 0.10

	// interval histogram bins are 5% of the mean interval wide
	histogramBinFraction = 0.05
)

// observation is a single connection of a group
type observation struct {
	ts    time.Time
	bytes int64
}

// sortObservations orders a group chronologically
func sortObservations(obs []observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].ts.Equal(obs[j].ts) {
			return obs[i].bytes < obs[j].bytes
		}
		return obs[i].ts.Before(obs[j].ts)
	})
}

// span returns the time between the first and last observation of a sorted group
func span(obs []observation) time.Duration {
	if len(obs) < 2 {
		return 0
	}
	return obs[len(obs)-1].ts.Sub(obs[0].ts)
}

// intervals returns the delta times in seconds of a sorted group
func intervals(obs []observation) []float64 {
	if len(obs) < 2 {
		return nil
	}
	diff := make([]float64, len(obs)-1)
	for i := 0; i < len(obs)-1; i++ {
		diff[i] = obs[i+1].ts.Sub(obs[i].ts).Seconds()
	}
	return diff
}

func sizes(obs []observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = float64(o.bytes)
	}
	return out
}

// analyzer calculates the statistical measures of the distributions of the
// timestamps and data sizes of a group and fuses them into a score
type analyzer struct {
	conf Config
}

// intervalStats computes the delta time measures. jitter is the standard
// deviation as a percentage of the mean.
func intervalStats(diff []float64) IntervalStats {
	if len(diff) == 0 {
		return IntervalStats{}
	}
	sorted := append([]float64(nil), diff...)
	sort.Float64s(sorted)

	stats := IntervalStats{
		Mean:       util.Mean(diff),
		Median:     util.Median(sorted),
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		StdDev:     util.StdDev(diff),
		Skew:       util.BowleySkew(sorted),
		Dispersion: util.MedianAbsoluteDeviation(sorted),
	}
	if stats.Mean > 0 {
		stats.JitterPct = stats.StdDev / stats.Mean * 100
	}
	return stats
}

func sizeStats(obs []observation) SizeStats {
	if len(obs) == 0 {
		return SizeStats{}
	}
	ds := sizes(obs)
	lo, hi := util.MinMax(ds)
	stats := SizeStats{
		Mean:   util.Mean(ds),
		Median: util.Median(ds),
		Min:    lo,
		Max:    hi,
		StdDev: util.StdDev(ds),
		CV:     util.CoefficientOfVariation(ds),
	}
	for _, o := range obs {
		stats.Total += o.bytes
	}
	return stats
}

// histogramConcentration scores how tightly the intervals cluster. A single
// repeated interval scores 1, evenly spread intervals score 0.
func histogramConcentration(diff []float64, mean float64) float64 {
	if len(diff) <= 1 {
		return 1
	}
	width := math.Max(1, mean*histogramBinFraction)
	bins := make(map[int64]int)
	for _, d := range diff {
		bins[int64(math.Floor(d/width))]++
	}
	maxEntropy := math.Log2(float64(len(diff)))
	if maxEntropy == 0 {
		return 1
	}
	return util.Clamp01(1 - util.CountEntropy(bins)/maxEntropy)
}

// components normalizes each measure to 0-1
func (a *analyzer) components(count int, window time.Duration, iv IntervalStats, ds SizeStats, histogram float64) Components {
	c := Components{Size: util.Clamp01(1 - ds.CV), Histogram: histogram}

	if a.conf.MaxJitterPct > 0 {
		c.Regularity = util.Clamp01(1 - iv.JitterPct/a.conf.MaxJitterPct)
	} else if iv.JitterPct == 0 {
		c.Regularity = 1
	}

	if a.conf.MinConnections > 0 {
		c.Sample = util.Clamp01(float64(count) / float64(2*a.conf.MinConnections))
	} else {
		c.Sample = 1
	}

	// any group admitted by the MinWindow filter has a full window
	if a.conf.MinWindow > 0 {
		c.Window = util.Clamp01(window.Seconds() / a.conf.MinWindow.Seconds())
	} else {
		c.Window = 1
	}
	return c
}

func (c Components) fuse() float64 {
	raw := regularityWeight*c.Regularity +
		sampleWeight*c.Sample +
		windowWeight*c.Window +
		sizeWeight*c.Size +
		histogramWeight*c.Histogram
	return util.Clamp(util.CeilTo(raw*100, 1), 0, 100)
}

// analyze scores a sorted group without applying any threshold
func (a *analyzer) analyze(key Key, obs []observation) *Finding {
	diff := intervals(obs)
	window := span(obs)
	iv := intervalStats(diff)
	ds := sizeStats(obs)
	comps := a.components(len(obs), window, iv, ds, histogramConcentration(diff, iv.Mean))

	f := &Finding{
		Key:         key,
		Count:       len(obs),
		SpanSeconds: window.Seconds(),
		Interval:    iv,
		Size:        ds,
		Components:  comps,
	}
	f.SetScore(comps.fuse())
	f.SetConfidence(math.Min(1, 0.6*comps.Sample+0.4*comps.Window))
	f.SetTechniques(techniques(key.DstPort, f.TotalScore))
	if len(obs) > 0 {
		f.Observe(obs[0].ts)
		f.Observe(obs[len(obs)-1].ts)
	}

	f.AddReason(fmt.Sprintf("%d connections every %.1fs on average (jitter %.1f%%)", f.Count, iv.Mean, iv.JitterPct))
	f.AddReason(fmt.Sprintf("observed over %s", window.Round(time.Second)))
	if len(obs) > 1 && ds.CV < 0.1 {
		f.AddReason(fmt.Sprintf("consistent payload size (~%.0f bytes)", ds.Mean))
	}
	if len(diff) > 1 && comps.Histogram >= 0.8 {
		f.AddReason("interval histogram concentrated in few bins")
	}
	return f
}

// techniques maps a beacon's destination port and score to technique ids
func techniques(port int, score float64) *finding.TechniqueSet {
	ids := finding.NewTechniqueSet(mitre.ApplicationLayerProtocol)
	switch port {
	case 80, 443, 8080, 8443:
		ids.Add(mitre.WebProtocols)
	case 53:
		ids.Add(mitre.DNS)
	}
	if score >= 80 && (port == 443 || port == 8443) {
		ids.Add(mitre.EncryptedChannel)
	}
	return ids
}

package beacon

import (
	"fmt"
	"strconv"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/finding"
)

type (
	//Config holds the thresholds of the beacon analysis
	Config struct {
		MinConnections     int
		MinWindow          time.Duration
		MaxJitterPct       float64
		MinScore           float64
		IncludeAllowlisted bool
	}

	//Key identifies the endpoint tuple a beacon is tracked under
	Key struct {
		SrcIP   string `json:"src" bson:"src"`
		DstIP   string `json:"dst" bson:"dst"`
		DstPort int    `json:"dst_port" bson:"dst_port"`
		Proto   string `json:"proto" bson:"proto"`
		Service string `json:"service" bson:"service"`
	}

	//IntervalStats describes the time between successive connections in seconds
	IntervalStats struct {
		Mean       float64 `json:"mean" bson:"mean"`
		Median     float64 `json:"median" bson:"median"`
		Min        float64 `json:"min" bson:"min"`
		Max        float64 `json:"max" bson:"max"`
		StdDev     float64 `json:"stddev" bson:"stddev"`
		JitterPct  float64 `json:"jitter_pct" bson:"jitter_pct"`
		Skew       float64 `json:"skew" bson:"skew"`
		Dispersion float64 `json:"dispersion" bson:"dispersion"`
	}

	//SizeStats describes the bytes sent by the source on each connection
	SizeStats struct {
		Mean   float64 `json:"mean" bson:"mean"`
		Median float64 `json:"median" bson:"median"`
		Min    float64 `json:"min" bson:"min"`
		Max    float64 `json:"max" bson:"max"`
		StdDev float64 `json:"stddev" bson:"stddev"`
		CV     float64 `json:"cv" bson:"cv"`
		Total  int64   `json:"total" bson:"total"`
	}

	//Components are the 0-1 sub scores fused into the beacon score
	Components struct {
		Regularity float64 `json:"regularity" bson:"regularity"`
		Sample     float64 `json:"sample" bson:"sample"`
		Window     float64 `json:"window" bson:"window"`
		Size       float64 `json:"size" bson:"size"`
		Histogram  float64 `json:"histogram" bson:"histogram"`
	}

	//Finding represents a beacon between two hosts. Contains information
	//on connection delta times and the amount of data transferred
	Finding struct {
		finding.Base `bson:",inline"`
		Key          Key           `json:"key" bson:"key"`
		Count        int           `json:"connection_count" bson:"connection_count"`
		SpanSeconds  float64       `json:"span_seconds" bson:"span_seconds"`
		Interval     IntervalStats `json:"interval" bson:"interval"`
		Size         SizeStats     `json:"size" bson:"size"`
		Components   Components    `json:"components" bson:"components"`
	}
)

// DefaultConfig returns the stock beacon thresholds
func DefaultConfig() Config {
	return Config{
		MinConnections: 10,
		MinWindow:      300 * time.Second,
		MaxJitterPct:   30,
		MinScore:       50,
	}
}

// ConfigFrom reads the beacon section of the static config
func ConfigFrom(conf *config.Config) Config {
	b := conf.S.Beacon
	return Config{
		MinConnections:     b.MinConnections,
		MinWindow:          time.Duration(b.MinWindowSeconds * float64(time.Second)),
		MaxJitterPct:       b.MaxJitterPct,
		MinScore:           b.MinScore,
		IncludeAllowlisted: b.IncludeAllowlisted,
	}
}

func (k Key) String() string {
	return k.SrcIP + "->" + k.DstIP + ":" + strconv.Itoa(k.DstPort) + "/" + k.Proto + "/" + k.Service
}

// Detector names the engine that produced the finding
func (f *Finding) Detector() finding.Detector { return finding.DetectorBeacon }

// Kind is always "beacon"
func (f *Finding) Kind() string { return "beacon" }

// Hosts implicates the beaconing source
func (f *Finding) Hosts() []finding.HostRef {
	return []finding.HostRef{{IP: f.Key.SrcIP, Role: finding.RoleSource}}
}

// RelatedIPs returns the beacon destination
func (f *Finding) RelatedIPs() []string { return []string{f.Key.DstIP} }

// RelatedDomains is empty since beacons are keyed by address
func (f *Finding) RelatedDomains() []string { return nil }

// Describe summarizes the beacon on one line
func (f *Finding) Describe() string {
	return fmt.Sprintf("beacon to %s:%d (%d connections every %.0fs, jitter %.1f%%)",
		f.Key.DstIP, f.Key.DstPort, f.Count, f.Interval.Mean, f.Interval.JitterPct)
}

// Package longconn scores connections held open far longer than their
// protocol warrants, weighing duration, transfer pattern, protocol and
// destination.
package longconn

import (
	"fmt"
	"net"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/util"
)

type (
	//Config holds the thresholds of the long connection analysis
	Config struct {
		MinDuration time.Duration
		MinScore    float64
		// InternalSubnets are never treated as external destinations
		InternalSubnets []*net.IPNet
	}

	//Transfer describes the bytes moved over the connection
	Transfer struct {
		UploadRate  float64 `json:"upload_rate" bson:"upload_rate"`
		TotalRate   float64 `json:"total_rate" bson:"total_rate"`
		UploadRatio float64 `json:"upload_ratio" bson:"upload_ratio"`
		TotalBytes  int64   `json:"total_bytes" bson:"total_bytes"`
		Covert      bool    `json:"covert" bson:"covert"`
	}

	//Components are the 0-1 sub scores fused into the long connection score
	Components struct {
		Duration    float64 `json:"duration" bson:"duration"`
		Transfer    float64 `json:"transfer" bson:"transfer"`
		Protocol    float64 `json:"protocol" bson:"protocol"`
		Destination float64 `json:"destination" bson:"destination"`
	}

	//Finding is a connection whose duration or volume stands out
	Finding struct {
		finding.Base     `bson:",inline"`
		Conn             data.Connection `json:"conn" bson:"conn"`
		Service          string          `json:"service" bson:"service"`
		ExpectedDuration float64         `json:"expected_duration" bson:"expected_duration"`
		External         bool            `json:"external" bson:"external"`
		Transfer         Transfer        `json:"transfer" bson:"transfer"`
		Components       Components      `json:"components" bson:"components"`
		ThreatLevel      finding.Level   `json:"threat_level" bson:"threat_level"`
	}
)

// DefaultConfig returns the stock long connection thresholds
func DefaultConfig() Config {
	return Config{
		MinDuration: 60 * time.Second,
		MinScore:    30,
	}
}

// ConfigFrom reads the long connection section of the static config
func ConfigFrom(conf *config.Config) Config {
	l := conf.S.LongConnections
	return Config{
		MinDuration:     time.Duration(l.MinDurationSeconds * float64(time.Second)),
		MinScore:        l.MinScore,
		InternalSubnets: conf.R.Filtering.InternalSubnets,
	}
}

// Detector names the engine that produced the finding
func (f *Finding) Detector() finding.Detector { return finding.DetectorLongConn }

// Kind is always "long_connection"
func (f *Finding) Kind() string { return "long_connection" }

// Hosts implicates the connection originator
func (f *Finding) Hosts() []finding.HostRef {
	return []finding.HostRef{{IP: f.Conn.SrcIP, Role: finding.RoleSource}}
}

// RelatedIPs returns the responder
func (f *Finding) RelatedIPs() []string { return []string{f.Conn.DstIP} }

// RelatedDomains is empty since connections are keyed by address
func (f *Finding) RelatedDomains() []string { return nil }

// Describe summarizes the connection on one line
func (f *Finding) Describe() string {
	service := f.Service
	if service == "" {
		service = "unknown"
	}
	return fmt.Sprintf("%s connection to %s:%d open for %s (%d bytes sent)",
		service, f.Conn.DstIP, f.Conn.DstPort,
		util.FormatDuration(secondsToDuration(f.Conn.Duration)), f.Conn.OrigBytes)
}

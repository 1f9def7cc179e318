// Package alertscore scores intrusion detection alerts by severity,
// category, repetition and context, and finds multi alert patterns.
package alertscore

import (
	"fmt"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
)

// Pattern types
const (
	PatternScanning     = "scanning"
	PatternExploitChain = "exploit_chain"
)

type (
	//Config holds the frequency window and the pattern thresholds
	Config struct {
		// FrequencyWindow of zero counts repeats across every alert in the store
		FrequencyWindow    time.Duration
		ScanMinAlerts      int
		ScanMinTargets     int
		ChainMinAlerts     int
		ChainMinTechniques int
	}

	//Components are the 0-100 sub scores of an alert
	Components struct {
		Severity  float64 `json:"severity" bson:"severity"`
		Category  float64 `json:"category" bson:"category"`
		Frequency float64 `json:"frequency" bson:"frequency"`
		Context   float64 `json:"context" bson:"context"`
	}

	//Finding is a scored alert
	Finding struct {
		finding.Base `bson:",inline"`
		Alert        data.Alert    `json:"alert" bson:"alert"`
		Components   Components    `json:"components" bson:"components"`
		Repeats      int           `json:"repeats" bson:"repeats"`
		ThreatLevel  finding.Level `json:"threat_level" bson:"threat_level"`
	}

	//Pattern groups several alerts that together tell a bigger story
	Pattern struct {
		finding.Base `bson:",inline"`
		Type         string   `json:"type" bson:"type"`
		IP           string   `json:"ip" bson:"ip"`
		AlertCount   int      `json:"alert_count" bson:"alert_count"`
		Peers        []string `json:"peers" bson:"peers"`
		Narrative    string   `json:"narrative" bson:"narrative"`
	}

	//Report is the result of scoring every alert in a store
	Report struct {
		Findings []*Finding `json:"findings"`
		Patterns []*Pattern `json:"patterns"`
	}
)

// DefaultConfig returns the stock alert scoring thresholds
func DefaultConfig() Config {
	return Config{
		ScanMinAlerts:      5,
		ScanMinTargets:     3,
		ChainMinAlerts:     3,
		ChainMinTechniques: 3,
	}
}

// ConfigFrom reads the alerts section of the static config
func ConfigFrom(conf *config.Config) Config {
	a := conf.S.Alerts
	return Config{
		FrequencyWindow:    a.FrequencyWindow,
		ScanMinAlerts:      a.ScanMinAlerts,
		ScanMinTargets:     a.ScanMinTargets,
		ChainMinAlerts:     a.ChainMinAlerts,
		ChainMinTechniques: a.ChainMinTechniques,
	}
}

// Detector names the engine that produced the finding
func (f *Finding) Detector() finding.Detector { return finding.DetectorAlert }

// Kind is always "alert"
func (f *Finding) Kind() string { return "alert" }

// Hosts implicates the source as attacker and the destination as victim
func (f *Finding) Hosts() []finding.HostRef {
	return []finding.HostRef{
		{IP: f.Alert.SrcIP, Role: finding.RoleAttacker},
		{IP: f.Alert.DstIP, Role: finding.RoleVictim},
	}
}

// RelatedIPs returns both ends of the alert
func (f *Finding) RelatedIPs() []string { return []string{f.Alert.SrcIP, f.Alert.DstIP} }

// RelatedDomains is empty for alerts
func (f *Finding) RelatedDomains() []string { return nil }

// Describe implements finding.Evidence
func (f *Finding) Describe() string {
	return fmt.Sprintf("alert %q %s -> %s (score %.1f)", f.Alert.Signature, f.Alert.SrcIP, f.Alert.DstIP, f.TotalScore)
}

// Detector names the engine that produced the pattern
func (p *Pattern) Detector() finding.Detector { return finding.DetectorAlert }

// Kind returns the pattern type
func (p *Pattern) Kind() string { return p.Type }

// Hosts implicates the scanning source or the exploited destination
func (p *Pattern) Hosts() []finding.HostRef {
	role := finding.RoleAttacker
	if p.Type == PatternExploitChain {
		role = finding.RoleVictim
	}
	return []finding.HostRef{{IP: p.IP, Role: role}}
}

// RelatedIPs returns the hosts on the other side of the pattern
func (p *Pattern) RelatedIPs() []string { return p.Peers }

// RelatedDomains is empty for alert patterns
func (p *Pattern) RelatedDomains() []string { return nil }

// Describe returns the narrative
func (p *Pattern) Describe() string { return p.Narrative }

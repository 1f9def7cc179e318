// Package correlate runs every detector over a store and folds their
// findings into one ranked, explainable threat profile per host.
package correlate

import (
	"errors"
	"fmt"
	"time"

	"github.com/activecm/threatfuse/pkg/alertscore"
	"github.com/activecm/threatfuse/pkg/beacon"
	"github.com/activecm/threatfuse/pkg/dnsthreat"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/longconn"
	"github.com/activecm/threatfuse/pkg/store"
)

// ErrProfileNotFound is returned when no profile exists for an address
var ErrProfileNotFound = errors.New("no threat profile for host")

// ErrNilStore is returned when Analyze is handed no store
var ErrNilStore = errors.New("cannot analyze a nil store")

type (
	//Profile is the HostThreatProfile of a single address
	Profile struct {
		IP          string        `json:"ip" bson:"_id"`
		Score       float64       `json:"score" bson:"score"`
		ThreatLevel finding.Level `json:"threat_level" bson:"threat_level"`
		Confidence  float64       `json:"confidence" bson:"confidence"`

		BeaconCount    int `json:"beacon_count" bson:"beacon_count"`
		DNSThreatCount int `json:"dns_threat_count" bson:"dns_threat_count"`
		AlertCount     int `json:"alert_count" bson:"alert_count"`
		LongConnCount  int `json:"long_conn_count" bson:"long_conn_count"`

		// DetectorScores holds the strongest 0-100 score of each contributing detector
		DetectorScores map[finding.Detector]float64 `json:"detector_scores" bson:"detector_scores"`
		Roles          []finding.Role               `json:"roles" bson:"roles"`

		Techniques        []string                      `json:"techniques" bson:"techniques"`
		TechniqueEvidence map[string]*TechniqueEvidence `json:"technique_evidence" bson:"technique_evidence"`
		Timeline          []TimelineEvent               `json:"timeline" bson:"timeline"`
		Narrative         string                        `json:"narrative" bson:"narrative"`
		Reasons           []string                      `json:"reasons" bson:"reasons"`

		RelatedIPs     []string  `json:"related_ips" bson:"related_ips"`
		RelatedDomains []string  `json:"related_domains" bson:"related_domains"`
		FirstSeen      time.Time `json:"first_seen" bson:"first_seen"`
		LastSeen       time.Time `json:"last_seen" bson:"last_seen"`

		// Evidence holds the findings folded into the profile
		Evidence []finding.Evidence `json:"-" bson:"-"`
	}

	//TechniqueEvidence consolidates every detection of one technique on a host
	TechniqueEvidence struct {
		ID             string             `json:"id" bson:"id"`
		Name           string             `json:"name" bson:"name"`
		Tactics        []string           `json:"tactics" bson:"tactics"`
		Behaviors      []string           `json:"behaviors" bson:"behaviors"`
		Detectors      []finding.Detector `json:"detectors" bson:"detectors"`
		DetectionCount int                `json:"detection_count" bson:"detection_count"`
		FirstDetected  time.Time          `json:"first_detected" bson:"first_detected"`
		LastDetected   time.Time          `json:"last_detected" bson:"last_detected"`
	}

	//TimelineEvent is one finding placed on the host's timeline
	TimelineEvent struct {
		Time        time.Time        `json:"time" bson:"time"`
		Detector    finding.Detector `json:"detector" bson:"detector"`
		Kind        string           `json:"kind" bson:"kind"`
		Score       float64          `json:"score" bson:"score"`
		Role        finding.Role     `json:"role" bson:"role"`
		Description string           `json:"description" bson:"description"`
	}

	//Profiles maps each address to its profile
	Profiles map[string]*Profile

	//Overview aggregates techniques and tactics across every profile
	Overview struct {
		Hosts          int                   `json:"hosts"`
		Levels         map[finding.Level]int `json:"levels"`
		Techniques     map[string]int        `json:"techniques"`
		Tactics        map[string]int        `json:"tactics"`
		TechniqueHosts map[string][]string   `json:"technique_hosts"`
	}

	//Analysis holds the raw detector output of one run next to the profiles
	//built from it
	Analysis struct {
		RunID     string              `json:"run_id"`
		Started   time.Time           `json:"started"`
		Elapsed   time.Duration       `json:"elapsed"`
		Records   store.Counts        `json:"records"`
		Beacons   []*beacon.Finding   `json:"beacons"`
		DNS       *dnsthreat.Summary  `json:"dns"`
		Alerts    *alertscore.Report  `json:"alerts"`
		LongConns []*longconn.Finding `json:"long_connections"`
		Profiles  Profiles            `json:"profiles"`
		Failures  []*DetectorError    `json:"failures,omitempty"`
	}

	//DetectorError records a detector that failed during a run. The failed
	//detector contributes nothing to the profiles.
	DetectorError struct {
		Detector finding.Detector `json:"detector"`
		Err      error            `json:"-"`
	}

	//Recorder observes the progress of an analysis, e.g. for metrics
	Recorder interface {
		ObserveRecords(counts store.Counts)
		ObserveDetector(d finding.Detector, elapsed time.Duration, findings int, err error)
		ObserveProfiles(profiles Profiles)
	}
)

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s detector failed: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

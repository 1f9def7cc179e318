// Package finding defines the evidence capability shared by every detector
// so that correlation can treat beacon, DNS, alert and long connection
// findings uniformly.
package finding

import (
	"time"

	"github.com/activecm/threatfuse/util"
)

// Detector names the engine that produced a finding
type Detector string

// Detectors known to the correlation engine, in fold order
const (
	DetectorBeacon   Detector = "beacon"
	DetectorDNS      Detector = "dns"
	DetectorAlert    Detector = "alert"
	DetectorLongConn Detector = "longconn"
)

// Detectors lists every detector in a fixed order
var Detectors = []Detector{DetectorBeacon, DetectorDNS, DetectorAlert, DetectorLongConn}

// Role describes how a host took part in a finding
type Role string

// Host roles
const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
	RoleAttacker    Role = "attacker"
	RoleVictim      Role = "victim"
)

// HostRef names a host implicated by a finding
type HostRef struct {
	IP   string `json:"ip" bson:"ip"`
	Role Role   `json:"role" bson:"role"`
}

// Evidence is implemented by every finding kind
type Evidence interface {
	Detector() Detector
	// Kind is a finer grained label such as "dns_tunneling"
	Kind() string
	// Score is in [0, 100]
	Score() float64
	// Confidence is in [0, 1]
	Confidence() float64
	Reasons() []string
	Techniques() []string
	FirstSeen() time.Time
	LastSeen() time.Time
	// Hosts lists the hosts whose profiles this finding feeds
	Hosts() []HostRef
	RelatedIPs() []string
	RelatedDomains() []string
	// Describe is a one line summary for timelines
	Describe() string
}

// Base carries the fields shared by every finding and implements the
// common part of Evidence
type Base struct {
	TotalScore   float64   `json:"score" bson:"score"`
	Conf         float64   `json:"confidence" bson:"confidence"`
	ReasonList   []string  `json:"reasons" bson:"reasons"`
	TechniqueIDs []string  `json:"techniques" bson:"techniques"`
	First        time.Time `json:"first_seen" bson:"first_seen"`
	Last         time.Time `json:"last_seen" bson:"last_seen"`
}

// Score returns the 0-100 score
func (b *Base) Score() float64 { return b.TotalScore }

// Confidence returns the 0-1 confidence
func (b *Base) Confidence() float64 { return b.Conf }

// Reasons returns the human readable reasons behind the score
func (b *Base) Reasons() []string { return b.ReasonList }

// Techniques returns the sorted technique ids
func (b *Base) Techniques() []string { return b.TechniqueIDs }

// FirstSeen returns the earliest supporting observation
func (b *Base) FirstSeen() time.Time { return b.First }

// LastSeen returns the latest supporting observation
func (b *Base) LastSeen() time.Time { return b.Last }

// Level returns the threat level of the score
func (b *Base) Level() Level { return LevelFromScore(b.TotalScore / 100) }

// SetScore stores score clamped to [0, 100]
func (b *Base) SetScore(score float64) {
	b.TotalScore = util.Clamp(score, 0, 100)
}

// SetConfidence stores conf clamped to [0, 1]
func (b *Base) SetConfidence(conf float64) {
	b.Conf = util.Clamp01(conf)
}

// SetTechniques stores the deduplicated, sorted technique ids
func (b *Base) SetTechniques(ids *TechniqueSet) {
	b.TechniqueIDs = ids.Items()
}

// Observe widens the first/last seen bounds to include t
func (b *Base) Observe(t time.Time) {
	if t.IsZero() {
		return
	}
	if b.First.IsZero() || t.Before(b.First) {
		b.First = t
	}
	if b.Last.IsZero() || t.After(b.Last) {
		b.Last = t
	}
}

// AddReason appends a reason string
func (b *Base) AddReason(reason string) {
	b.ReasonList = append(b.ReasonList, reason)
}

// TechniqueSet collects technique ids without duplicates
type TechniqueSet struct {
	ids map[string]struct{}
}

// NewTechniqueSet creates a set holding ids
func NewTechniqueSet(ids ...string) *TechniqueSet {
	s := &TechniqueSet{ids: make(map[string]struct{})}
	s.Add(ids...)
	return s
}

// Add inserts ids into the set
func (s *TechniqueSet) Add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// Has reports whether id is in the set
func (s *TechniqueSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids
func (s *TechniqueSet) Len() int { return len(s.ids) }

// Items returns the ids in ascending order
func (s *TechniqueSet) Items() []string {
	return util.SortedKeys(s.ids)
}

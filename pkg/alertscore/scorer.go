package alertscore

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/activecm/threatfuse/util"
	log "github.com/sirupsen/logrus"
)

// component weights of the alert score
const (
	severityWeight  = 0.35
	categoryWeight  = 0.35
	frequencyWeight = 0.20
	contextWeight   = 0.10

	// a top severity alert in a critical category never scores below
	// criticalFloor times the mean of its severity and category scores
	criticalFloor         = 0.9
	criticalCategoryScore = 85
)

// Scorer scores alerts and finds alert patterns
type Scorer struct {
	conf Config
	log  *log.Logger
}

// NewScorer creates an alert scorer
func NewScorer(conf Config, logger *log.Logger) *Scorer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Scorer{conf: conf, log: logger}
}

// repeatKey groups alerts that count toward each other's frequency
type repeatKey struct {
	sid       int
	signature string
	src       string
	dst       string
}

func keyOf(a *data.Alert) repeatKey {
	k := repeatKey{sid: a.SignatureID, src: a.SrcIP, dst: a.DstIP}
	if a.SignatureID == 0 {
		k.signature = a.Signature
	}
	return k
}

// Analyze scores every alert in the store and looks for patterns. Findings
// are ordered by score, highest first, and otherwise keep store order.
func (sc *Scorer) Analyze(s *store.Store) *Report {
	var alerts []data.Alert
	repeats := make(map[repeatKey][]time.Time)
	s.EachAlert(func(a *data.Alert) {
		alerts = append(alerts, *a)
		k := keyOf(a)
		repeats[k] = append(repeats[k], a.Timestamp)
	})
	if sc.conf.FrequencyWindow > 0 {
		for _, ts := range repeats {
			sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		}
	}

	report := &Report{Findings: make([]*Finding, 0, len(alerts))}
	for i := range alerts {
		a := &alerts[i]
		report.Findings = append(report.Findings, sc.Score(*a, sc.repeatCount(repeats[keyOf(a)], a.Timestamp)))
	}
	sort.SliceStable(report.Findings, func(i, j int) bool {
		return report.Findings[i].TotalScore > report.Findings[j].TotalScore
	})

	report.Patterns = sc.patterns(report.Findings)

	sc.log.WithFields(log.Fields{
		"alerts":   len(report.Findings),
		"patterns": len(report.Patterns),
	}).Debug("alert scoring complete")
	return report
}

// repeatCount returns how many alerts of the same signature and host pair
// fall within the frequency window of ts, ts included
func (sc *Scorer) repeatCount(times []time.Time, ts time.Time) int {
	if sc.conf.FrequencyWindow <= 0 {
		return len(times)
	}
	lo := ts.Add(-sc.conf.FrequencyWindow)
	hi := ts.Add(sc.conf.FrequencyWindow)
	first := sort.Search(len(times), func(i int) bool { return !times[i].Before(lo) })
	last := sort.Search(len(times), func(i int) bool { return times[i].After(hi) })
	return last - first
}

// Score scores a single alert that was seen repeats times. The score is
// the 35/35/20/10 weighted sum, except that a severity 1 alert in a
// critical category never scores below criticalFloor times the mean of
// its severity and category scores (see DESIGN.md, alert critical floor).
func (sc *Scorer) Score(a data.Alert, repeats int) *Finding {
	entry, knownCategory := lookupCategory(a.Category)

	comps := Components{
		Severity:  severityScore(a.Severity),
		Category:  defaultCategoryScore,
		Frequency: frequencyScore(repeats),
		Context:   contextScore(&a),
	}
	if knownCategory {
		comps.Category = entry.score
	}

	score := severityWeight*comps.Severity +
		categoryWeight*comps.Category +
		frequencyWeight*comps.Frequency +
		contextWeight*comps.Context
	if a.Severity == 1 && comps.Category >= criticalCategoryScore {
		score = math.Max(score, criticalFloor*(comps.Severity+comps.Category)/2)
	}

	f := &Finding{Alert: a, Components: comps, Repeats: repeats}
	f.SetScore(score)
	f.ThreatLevel = f.Level()
	f.Observe(a.Timestamp)

	ids := finding.NewTechniqueSet()
	matched := false
	for _, p := range signaturePatterns {
		if p.re.MatchString(a.Signature) {
			ids.Add(p.techniques...)
			matched = true
		}
	}
	if knownCategory {
		ids.Add(entry.techniques...)
	}
	if ids.Len() == 0 {
		if id, ok := protocolTechniques[strings.ToLower(a.AppProto)]; ok {
			ids.Add(id)
		}
	}
	f.SetTechniques(ids)

	conf := 0.5
	if knownCategory {
		conf += 0.2
	}
	if matched {
		conf += 0.2
	}
	if repeats > 1 {
		conf += 0.1
	}
	f.SetConfidence(conf)

	f.AddReason(fmt.Sprintf("severity %d alert %q", a.Severity, a.Signature))
	if a.Category != "" {
		f.AddReason(fmt.Sprintf("category %q scores %.0f", a.Category, comps.Category))
	}
	if repeats > 1 {
		f.AddReason(fmt.Sprintf("seen %d times between %s and %s", repeats, a.SrcIP, a.DstIP))
	}
	if comps.Context > 0 {
		f.AddReason(fmt.Sprintf("unusual context (%s/%s on port %d)", a.Proto, a.AppProto, a.DstPort))
	}
	return f
}

func severityScore(severity int) float64 {
	if score, ok := severityScores[severity]; ok {
		return score
	}
	return defaultSeverityScore
}

// frequencyScore buckets how often the same alert repeated
func frequencyScore(n int) float64 {
	switch {
	case n >= 100:
		return 100
	case n >= 50:
		return 90
	case n >= 25:
		return 75
	case n >= 10:
		return 60
	case n >= 5:
		return 40
	case n >= 2:
		return 20
	}
	return 0
}

// contextScore adds points for exotic transports and for application
// protocols on ports they do not normally use
func contextScore(a *data.Alert) float64 {
	score := 0.0
	proto := strings.ToLower(a.Proto)
	if _, ok := standardTransports[proto]; proto != "" && !ok {
		score += 50
	}
	app := strings.ToLower(a.AppProto)
	if ports, ok := canonicalPorts[app]; ok {
		if !containsPort(ports, a.DstPort) && !containsPort(ports, a.SrcPort) {
			score += 50
		}
	}
	return util.Clamp(score, 0, 100)
}

func containsPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

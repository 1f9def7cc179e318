package correlate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
)

// detectorRank orders detectors the way they are folded
var detectorRank = func() map[finding.Detector]int {
	rank := make(map[finding.Detector]int)
	for i, d := range finding.Detectors {
		rank[d] = i
	}
	return rank
}()

// draft accumulates the sets behind a profile while findings are folded in
type draft struct {
	profile    *Profile
	related    data.StringSet
	domains    data.StringSet
	roles      map[finding.Role]struct{}
	techniques *finding.TechniqueSet
	behaviors  map[string]data.StringSet
	detectors  map[string]map[finding.Detector]struct{}
}

// builder creates profiles lazily as findings implicate new hosts
type builder struct {
	drafts map[string]*draft
}

func newBuilder() *builder {
	return &builder{drafts: make(map[string]*draft)}
}

func (b *builder) draft(ip string) *draft {
	d, ok := b.drafts[ip]
	if !ok {
		d = &draft{
			profile: &Profile{
				IP:                ip,
				DetectorScores:    make(map[finding.Detector]float64),
				TechniqueEvidence: make(map[string]*TechniqueEvidence),
			},
			related:    make(data.StringSet),
			domains:    make(data.StringSet),
			roles:      make(map[finding.Role]struct{}),
			techniques: finding.NewTechniqueSet(),
			behaviors:  make(map[string]data.StringSet),
			detectors:  make(map[string]map[finding.Detector]struct{}),
		}
		b.drafts[ip] = d
	}
	return d
}

// add folds ev into the profile of every host it implicates
func (b *builder) add(ev finding.Evidence) {
	seen := make(map[string]bool)
	for _, host := range ev.Hosts() {
		if host.IP == "" || seen[host.IP] {
			continue
		}
		seen[host.IP] = true
		b.draft(host.IP).add(ev, host.Role)
	}
}

func (d *draft) add(ev finding.Evidence, role finding.Role) {
	p := d.profile
	det := ev.Detector()
	switch det {
	case finding.DetectorBeacon:
		p.BeaconCount++
	case finding.DetectorDNS:
		p.DNSThreatCount++
	case finding.DetectorAlert:
		p.AlertCount++
	case finding.DetectorLongConn:
		p.LongConnCount++
	}
	if score, ok := p.DetectorScores[det]; !ok || ev.Score() > score {
		p.DetectorScores[det] = ev.Score()
	}
	d.roles[role] = struct{}{}

	d.techniques.Add(ev.Techniques()...)
	for _, id := range ev.Techniques() {
		d.mergeTechnique(id, ev)
	}

	for _, ip := range ev.RelatedIPs() {
		if ip != "" && ip != p.IP {
			d.related.Insert(ip)
		}
	}
	d.domains.Insert(ev.RelatedDomains()...)

	for _, t := range []time.Time{ev.FirstSeen(), ev.LastSeen()} {
		if t.IsZero() {
			continue
		}
		if p.FirstSeen.IsZero() || t.Before(p.FirstSeen) {
			p.FirstSeen = t
		}
		if p.LastSeen.IsZero() || t.After(p.LastSeen) {
			p.LastSeen = t
		}
	}

	p.Timeline = append(p.Timeline, TimelineEvent{
		Time:        ev.FirstSeen(),
		Detector:    det,
		Kind:        ev.Kind(),
		Score:       ev.Score(),
		Role:        role,
		Description: ev.Describe(),
	})
	p.Evidence = append(p.Evidence, ev)
}

// mergeTechnique unions the behaviors and sums the detections of id
func (d *draft) mergeTechnique(id string, ev finding.Evidence) {
	te, ok := d.profile.TechniqueEvidence[id]
	if !ok {
		te = &TechniqueEvidence{ID: id, Name: mitre.Name(id), Tactics: mitre.Tactics(id)}
		d.profile.TechniqueEvidence[id] = te
		d.behaviors[id] = make(data.StringSet)
		d.detectors[id] = make(map[finding.Detector]struct{})
	}
	te.DetectionCount++
	d.behaviors[id].Insert(ev.Kind())
	d.detectors[id][ev.Detector()] = struct{}{}
	if first := ev.FirstSeen(); !first.IsZero() && (te.FirstDetected.IsZero() || first.Before(te.FirstDetected)) {
		te.FirstDetected = first
	}
	if last := ev.LastSeen(); !last.IsZero() && last.After(te.LastDetected) {
		te.LastDetected = last
	}
}

// finish materializes the sets and fuses the detector scores
func (d *draft) finish() *Profile {
	p := d.profile
	p.Techniques = d.techniques.Items()
	p.RelatedIPs = d.related.Items()
	p.RelatedDomains = d.domains.Items()

	for role := range d.roles {
		p.Roles = append(p.Roles, role)
	}
	sort.Slice(p.Roles, func(i, j int) bool { return p.Roles[i] < p.Roles[j] })

	for id, te := range p.TechniqueEvidence {
		te.Behaviors = d.behaviors[id].Items()
		te.Detectors = sortedDetectors(d.detectors[id])
	}

	sort.SliceStable(p.Timeline, func(i, j int) bool {
		a, b := p.Timeline[i], p.Timeline[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Detector != b.Detector {
			return detectorRank[a.Detector] < detectorRank[b.Detector]
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Description < b.Description
	})

	p.Score = fuse(p.DetectorScores)
	p.ThreatLevel = finding.LevelFromScore(p.Score)
	p.Confidence = confidence(len(p.DetectorScores))
	for _, det := range p.detectors() {
		p.Reasons = append(p.Reasons, fmt.Sprintf("%s: %d finding(s), strongest scored %.1f",
			det, p.count(det), p.DetectorScores[det]))
	}
	if m := diversity(len(p.DetectorScores)); m > 1 {
		p.Reasons = append(p.Reasons, fmt.Sprintf("%d detectors agree (x%.1f)", len(p.DetectorScores), m))
	}
	return p
}

// boost multiplies the unified score and records why
func (p *Profile) boost(factor float64, reason string) {
	p.Score = clampUnit(p.Score * factor)
	p.ThreatLevel = finding.LevelFromScore(p.Score)
	p.Reasons = append(p.Reasons, fmt.Sprintf("%s (x%.2f)", reason, factor))
}

// detectors returns the contributing detectors in fold order
func (p *Profile) detectors() []finding.Detector {
	var out []finding.Detector
	for _, det := range finding.Detectors {
		if _, ok := p.DetectorScores[det]; ok {
			out = append(out, det)
		}
	}
	return out
}

func (p *Profile) count(det finding.Detector) int {
	switch det {
	case finding.DetectorBeacon:
		return p.BeaconCount
	case finding.DetectorDNS:
		return p.DNSThreatCount
	case finding.DetectorAlert:
		return p.AlertCount
	case finding.DetectorLongConn:
		return p.LongConnCount
	}
	return 0
}

// summarize writes the narrative once the score is final
func (p *Profile) summarize() {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is rated %s (score %.2f, confidence %.2f)", p.IP, p.ThreatLevel, p.Score, p.Confidence)

	var parts []string
	for _, det := range p.detectors() {
		parts = append(parts, fmt.Sprintf("%d %s", p.count(det), det))
	}
	fmt.Fprintf(&b, " based on %s findings.", strings.Join(parts, ", "))

	if len(p.Techniques) > 0 {
		names := make([]string, 0, len(p.Techniques))
		for _, id := range p.Techniques {
			names = append(names, fmt.Sprintf("%s (%s)", mitre.Name(id), id))
		}
		fmt.Fprintf(&b, " Techniques: %s.", strings.Join(names, ", "))
	}
	if !p.FirstSeen.IsZero() {
		fmt.Fprintf(&b, " Active from %s to %s.",
			p.FirstSeen.UTC().Format("2006-01-02 15:04:05"), p.LastSeen.UTC().Format("2006-01-02 15:04:05"))
	}
	if len(p.Timeline) > 0 {
		strongest := p.Timeline[0]
		for _, ev := range p.Timeline[1:] {
			if ev.Score > strongest.Score {
				strongest = ev
			}
		}
		fmt.Fprintf(&b, " Strongest: %s.", strongest.Description)
	}
	p.Narrative = b.String()
}

func sortedDetectors(set map[finding.Detector]struct{}) []finding.Detector {
	out := make([]finding.Detector, 0, len(set))
	for det := range set {
		out = append(out, det)
	}
	sort.Slice(out, func(i, j int) bool { return detectorRank[out[i]] < detectorRank[out[j]] })
	return out
}

package dnsthreat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/util"
)

type (
	//FastFluxComponents are the 0-1 sub scores of a fast flux finding
	FastFluxComponents struct {
		UniqueIPs float64 `json:"unique_ips" bson:"unique_ips"`
		Changes   float64 `json:"changes" bson:"changes"`
		TTL       float64 `json:"ttl" bson:"ttl"`
		Duration  float64 `json:"duration" bson:"duration"`
	}

	//FastFluxFinding marks a domain whose answers rotate rapidly across
	//many addresses
	FastFluxFinding struct {
		common         `bson:",inline"`
		Sources        []string           `json:"sources" bson:"sources"`
		ResolvedIPs    []string           `json:"resolved_ips" bson:"resolved_ips"`
		AnswerChanges  int                `json:"answer_changes" bson:"answer_changes"`
		ChangesPerHour float64            `json:"changes_per_hour" bson:"changes_per_hour"`
		AvgTTL         float64            `json:"avg_ttl" bson:"avg_ttl"`
		Hours          float64            `json:"hours" bson:"hours"`
		Components     FastFluxComponents `json:"components" bson:"components"`
	}
)

// Variant implements Finding
func (f *FastFluxFinding) Variant() Variant { return VariantFastFlux }

// Kind implements finding.Evidence
func (f *FastFluxFinding) Kind() string { return string(VariantFastFlux) }

// Hosts implicates every source that resolved the domain
func (f *FastFluxFinding) Hosts() []finding.HostRef {
	refs := make([]finding.HostRef, len(f.Sources))
	for i, src := range f.Sources {
		refs[i] = finding.HostRef{IP: src, Role: finding.RoleSource}
	}
	return refs
}

// RelatedIPs returns the rotating addresses
func (f *FastFluxFinding) RelatedIPs() []string { return f.ResolvedIPs }

// Describe implements finding.Evidence
func (f *FastFluxFinding) Describe() string {
	return fmt.Sprintf("%s %s (%d addresses, score %.1f)",
		VariantFastFlux, f.DomainName, len(f.ResolvedIPs), f.TotalScore)
}

// ttlScore rewards short lived answers. A domain without TTL data scores 0.
func ttlScore(avgTTL float64, known bool) float64 {
	switch {
	case !known:
		return 0
	case avgTTL <= 300:
		return 1
	case avgTTL <= 900:
		return 0.6
	case avgTTL <= 3600:
		return 0.3
	}
	return 0
}

// fastFlux groups answered queries by name and scores how quickly the
// IPv4 answer set rotates
func (d *Detector) fastFlux(queries []query) []*FastFluxFinding {
	groups := make(map[string][]*query)
	for i := range queries {
		q := &queries[i]
		if !q.parts.ok || len(q.ipv4) == 0 {
			continue
		}
		groups[q.name] = append(groups[q.name], q)
	}

	var results []*FastFluxFinding
	for name, group := range groups {
		f := d.scoreFastFlux(name, group)
		if f == nil || f.TotalScore < d.conf.MinFastFluxScore {
			continue
		}
		results = append(results, f)
	}
	sortFindings(results)
	return results
}

func (d *Detector) scoreFastFlux(name string, group []*query) *FastFluxFinding {
	ips := make(data.StringSet)
	sources := make(data.StringSet)
	for _, q := range group {
		ips.Insert(q.ipv4...)
		sources.Insert(q.src)
	}
	if len(ips) < d.conf.FastFluxMinIPs {
		return nil
	}

	sort.SliceStable(group, func(i, j int) bool { return group[i].ts.Before(group[j].ts) })
	window := group[len(group)-1].ts.Sub(group[0].ts)
	if window < d.conf.FastFluxMinSpan || window <= 0 {
		return nil
	}
	hours := window.Hours()

	changes := 0
	prev := ""
	var ttlSum float64
	ttlCount := 0
	for i, q := range group {
		answers := append([]string(nil), q.ipv4...)
		sort.Strings(answers)
		set := strings.Join(answers, ",")
		if i > 0 && set != prev {
			changes++
		}
		prev = set
		for _, ttl := range q.ttls {
			ttlSum += ttl
			ttlCount++
		}
	}

	f := &FastFluxFinding{
		common:         common{DomainName: name},
		Sources:        sources.Items(),
		ResolvedIPs:    ips.Items(),
		AnswerChanges:  changes,
		ChangesPerHour: float64(changes) / hours,
		Hours:          hours,
	}
	if ttlCount > 0 {
		f.AvgTTL = ttlSum / float64(ttlCount)
	}

	comps := FastFluxComponents{
		UniqueIPs: util.Clamp01(float64(len(ips)) / 20),
		Changes:   util.Clamp01(f.ChangesPerHour / 10),
		TTL:       ttlScore(f.AvgTTL, ttlCount > 0),
		Duration:  util.Clamp01(hours / 24),
	}
	f.Components = comps
	f.SetScore(100 * (0.40*comps.UniqueIPs + 0.30*comps.Changes + 0.20*comps.TTL + 0.10*comps.Duration))
	f.SetConfidence(0.4 + 0.3*comps.UniqueIPs + 0.3*comps.Duration)
	f.Observe(group[0].ts)
	f.Observe(group[len(group)-1].ts)
	f.SetTechniques(finding.NewTechniqueSet(mitre.FastFluxDNS, mitre.DynamicResolution))

	f.AddReason(fmt.Sprintf("%d distinct IPv4 answers over %s", len(ips), window.Round(time.Minute)))
	f.AddReason(fmt.Sprintf("answer set changed %.1f times per hour", f.ChangesPerHour))
	if ttlCount > 0 {
		f.AddReason(fmt.Sprintf("average TTL %.0fs", f.AvgTTL))
	}
	f.AddReason(fmt.Sprintf("queried by %d source(s)", len(sources)))
	return f
}

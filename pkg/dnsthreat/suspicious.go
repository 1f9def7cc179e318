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

// maxExamples caps the domains and types quoted by a suspicious finding
const maxExamples = 5

// SuspiciousFinding marks query behavior that is odd without matching one of
// the specific threat variants
type SuspiciousFinding struct {
	common        `bson:",inline"`
	Pattern       string   `json:"pattern" bson:"pattern"`
	QueryCount    int      `json:"query_count" bson:"query_count"`
	Ratio         float64  `json:"ratio,omitempty" bson:"ratio,omitempty"`
	PeakPerMinute int      `json:"peak_per_minute,omitempty" bson:"peak_per_minute,omitempty"`
	QueryTypes    []string `json:"query_types,omitempty" bson:"query_types,omitempty"`
	Examples      []string `json:"examples,omitempty" bson:"examples,omitempty"`
}

// Variant implements Finding
func (f *SuspiciousFinding) Variant() Variant { return VariantSuspicious }

// Kind implements finding.Evidence
func (f *SuspiciousFinding) Kind() string { return f.Pattern }

// RelatedDomains returns the domain or, for per source patterns, example domains
func (f *SuspiciousFinding) RelatedDomains() []string {
	if f.DomainName != "" {
		return []string{f.DomainName}
	}
	return f.Examples
}

// Describe implements finding.Evidence
func (f *SuspiciousFinding) Describe() string {
	return fmt.Sprintf("%s from %s (score %.1f)", f.Pattern, f.SrcIP, f.TotalScore)
}

func (f *SuspiciousFinding) key() string {
	return f.DomainName + "|" + f.SrcIP + "|" + f.Pattern
}

// rampScore maps a value at its threshold to 40 and at saturation to 100
func rampScore(value, threshold, saturation float64) float64 {
	if saturation <= threshold {
		return 100
	}
	return 40 + 60*util.Clamp01((value-threshold)/(saturation-threshold))
}

// topCounted returns up to max keys ordered by count, then name
func topCounted(counts map[string]int, max int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > max {
		keys = keys[:max]
	}
	return keys
}

type sourceStats struct {
	total       int
	nx          int
	unusual     int
	nxDomains   map[string]int
	unusualSeen map[string]int
	first, last time.Time
}

// suspicious runs the per source and per domain pattern checks
func (d *Detector) suspicious(queries []query) []*SuspiciousFinding {
	sources := make(map[string]*sourceStats)
	rates := make(map[pairKey]map[time.Time]int)
	spans := make(map[pairKey]*finding.Base)

	for i := range queries {
		q := &queries[i]
		st, ok := sources[q.src]
		if !ok {
			st = &sourceStats{nxDomains: make(map[string]int), unusualSeen: make(map[string]int)}
			sources[q.src] = st
		}
		st.total++
		if q.nx {
			st.nx++
			st.nxDomains[q.name]++
		}
		if isUnusualType(q.qtype) {
			st.unusual++
			st.unusualSeen[strings.ToUpper(q.qtype)]++
		}
		if st.first.IsZero() || q.ts.Before(st.first) {
			st.first = q.ts
		}
		if q.ts.After(st.last) {
			st.last = q.ts
		}

		domain := q.name
		if q.parts.ok {
			domain = q.parts.Registrable
		}
		key := pairKey{q.src, domain}
		buckets, ok := rates[key]
		if !ok {
			buckets = make(map[time.Time]int)
			rates[key] = buckets
			spans[key] = &finding.Base{}
		}
		buckets[q.ts.Truncate(time.Minute)]++
		spans[key].Observe(q.ts)
	}

	var results []*SuspiciousFinding
	for src, st := range sources {
		if st.total >= d.conf.NXDomainMinQueries {
			ratio := float64(st.nx) / float64(st.total)
			if ratio >= d.conf.NXDomainRatio {
				results = append(results, nxFinding(src, st, ratio, d.conf.NXDomainRatio))
			}
		}
		if st.total >= d.conf.UnusualTypeMinQueries {
			ratio := float64(st.unusual) / float64(st.total)
			if st.unusual > 0 && ratio >= d.conf.UnusualTypeRatio {
				results = append(results, unusualTypeFinding(src, st, ratio, d.conf.UnusualTypeRatio))
			}
		}
	}

	for key, buckets := range rates {
		peak, total := 0, 0
		for _, c := range buckets {
			total += c
			if c > peak {
				peak = c
			}
		}
		if peak > d.conf.MaxQueriesPerMinute {
			results = append(results, rateFinding(key, peak, total, spans[key], d.conf.MaxQueriesPerMinute))
		}
	}

	sortFindings(results)
	return results
}

func nxFinding(src string, st *sourceStats, ratio, threshold float64) *SuspiciousFinding {
	f := &SuspiciousFinding{
		common:     common{SrcIP: src},
		Pattern:    PatternNXDomain,
		QueryCount: st.total,
		Ratio:      ratio,
		Examples:   topCounted(st.nxDomains, maxExamples),
	}
	f.SetScore(rampScore(ratio, threshold, 1))
	f.SetConfidence(0.5 + 0.5*util.Clamp01(float64(st.total)/100))
	f.Observe(st.first)
	f.Observe(st.last)
	f.SetTechniques(finding.NewTechniqueSet(mitre.DomainGenerationAlgorithm))
	f.AddReason(fmt.Sprintf("%d of %d queries (%.0f%%) returned NXDOMAIN across %d names",
		st.nx, st.total, ratio*100, len(st.nxDomains)))
	return f
}

func unusualTypeFinding(src string, st *sourceStats, ratio, threshold float64) *SuspiciousFinding {
	types := make(data.StringSet)
	for t := range st.unusualSeen {
		types.Insert(t)
	}
	f := &SuspiciousFinding{
		common:     common{SrcIP: src},
		Pattern:    PatternUnusualType,
		QueryCount: st.total,
		Ratio:      ratio,
		QueryTypes: types.Items(),
	}
	f.SetScore(rampScore(ratio, threshold, 1))
	f.SetConfidence(0.5 + 0.5*util.Clamp01(float64(st.total)/100))
	f.Observe(st.first)
	f.Observe(st.last)
	f.SetTechniques(finding.NewTechniqueSet(mitre.DNS, mitre.ProtocolTunneling))
	f.AddReason(fmt.Sprintf("%d of %d queries (%.0f%%) used unusual record types %s",
		st.unusual, st.total, ratio*100, strings.Join(f.QueryTypes, ",")))
	return f
}

func rateFinding(key pairKey, peak, total int, seen *finding.Base, threshold int) *SuspiciousFinding {
	f := &SuspiciousFinding{
		common:        common{DomainName: key.domain, SrcIP: key.src},
		Pattern:       PatternQueryRate,
		QueryCount:    total,
		PeakPerMinute: peak,
	}
	f.SetScore(rampScore(float64(peak), float64(threshold), float64(threshold*5)))
	f.SetConfidence(0.5 + 0.5*util.Clamp01(float64(peak)/float64(threshold*5)))
	f.Observe(seen.FirstSeen())
	f.Observe(seen.LastSeen())
	f.SetTechniques(finding.NewTechniqueSet(mitre.DNS))
	f.AddReason(fmt.Sprintf("peak of %d queries per minute for %s exceeds %d", peak, key.domain, threshold))
	return f
}

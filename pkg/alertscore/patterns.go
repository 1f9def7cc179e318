package alertscore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/util"
)

// pattern score boosts over the strongest member alert
const (
	scanBoost  = 1.2
	chainBoost = 1.3
)

// patterns groups scored alerts by source to find scanning and by
// destination to find exploit chains
func (sc *Scorer) patterns(findings []*Finding) []*Pattern {
	bySrc := make(map[string][]*Finding)
	byDst := make(map[string][]*Finding)
	for _, f := range findings {
		bySrc[f.Alert.SrcIP] = append(bySrc[f.Alert.SrcIP], f)
		byDst[f.Alert.DstIP] = append(byDst[f.Alert.DstIP], f)
	}

	var results []*Pattern
	for src, group := range bySrc {
		if len(group) < sc.conf.ScanMinAlerts {
			continue
		}
		targets := make(data.StringSet)
		for _, f := range group {
			targets.Insert(f.Alert.DstIP)
		}
		if len(targets) < sc.conf.ScanMinTargets {
			continue
		}
		results = append(results, newPattern(PatternScanning, src, group, targets.Items(), scanBoost))
	}

	for dst, group := range byDst {
		if len(group) < sc.conf.ChainMinAlerts {
			continue
		}
		ids := finding.NewTechniqueSet()
		for _, f := range group {
			ids.Add(f.Techniques()...)
		}
		if ids.Len() < sc.conf.ChainMinTechniques {
			continue
		}
		sources := make(data.StringSet)
		for _, f := range group {
			sources.Insert(f.Alert.SrcIP)
		}
		results = append(results, newPattern(PatternExploitChain, dst, group, sources.Items(), chainBoost))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		if results[i].Type != results[j].Type {
			return results[i].Type < results[j].Type
		}
		return results[i].IP < results[j].IP
	})
	return results
}

func newPattern(kind, ip string, group []*Finding, peers []string, boost float64) *Pattern {
	p := &Pattern{Type: kind, IP: ip, AlertCount: len(group), Peers: peers}

	max := 0.0
	ids := finding.NewTechniqueSet()
	signatures := make(data.StringSet)
	for _, f := range group {
		if f.TotalScore > max {
			max = f.TotalScore
		}
		ids.Add(f.Techniques()...)
		signatures.Insert(f.Alert.Signature)
		p.Observe(f.FirstSeen())
		p.Observe(f.LastSeen())
	}
	if kind == PatternScanning {
		ids.Add(mitre.NetworkServiceDiscovery)
	}
	p.SetScore(max * boost)
	p.SetConfidence(0.5 + 0.05*float64(len(group)))
	p.SetTechniques(ids)

	switch kind {
	case PatternScanning:
		p.Narrative = fmt.Sprintf("%s triggered %d alerts against %d hosts between %s and %s",
			ip, len(group), len(peers), p.First.Format("15:04:05"), p.Last.Format("15:04:05"))
	case PatternExploitChain:
		names := make([]string, 0, ids.Len())
		for _, id := range ids.Items() {
			names = append(names, fmt.Sprintf("%s (%s)", mitre.Name(id), id))
		}
		p.Narrative = fmt.Sprintf("%s was targeted by %d alerts from %d sources spanning %s",
			ip, len(group), len(peers), strings.Join(names, ", "))
	}
	p.AddReason(fmt.Sprintf("%d distinct signatures", len(signatures)))
	p.AddReason(fmt.Sprintf("strongest alert scored %.1f, boosted by %d%%", max, util.Round((boost-1)*100)))
	return p
}

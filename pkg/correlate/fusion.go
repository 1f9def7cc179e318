package correlate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/activecm/threatfuse/pkg/beacon"
	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/util"
)

// fusion weights; the strongest signal dominates, weaker ones add to it
const (
	maxWeight     = 0.7
	averageWeight = 0.3
)

// diversity multipliers by number of distinct contributing detectors
const (
	twoDetectorBoost   = 1.1
	threeDetectorBoost = 1.2
)

// fuse combines the strongest 0-100 score of each detector into a 0-1
// unified score
func fuse(scores map[finding.Detector]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	max, sum := 0.0, 0.0
	for _, det := range finding.Detectors {
		score, ok := scores[det]
		if !ok {
			continue
		}
		unit := score / 100
		max = math.Max(max, unit)
		sum += unit
	}
	unified := maxWeight*max + averageWeight*sum/float64(len(scores))
	return clampUnit(unified * diversity(len(scores)))
}

func diversity(detectors int) float64 {
	switch {
	case detectors >= 3:
		return threeDetectorBoost
	case detectors == 2:
		return twoDetectorBoost
	}
	return 1
}

func confidence(detectors int) float64 {
	return math.Min(0.5+0.15*float64(detectors), 1)
}

func clampUnit(f float64) float64 {
	return util.Clamp01(f)
}

// correlate folds every finding of a into host profiles and applies the
// cross profile boosts
func (e *Engine) correlate(a *Analysis) Profiles {
	b := newBuilder()
	for _, f := range a.Beacons {
		b.add(f)
	}
	for _, f := range a.DNS.All() {
		b.add(f)
	}
	for _, f := range a.Alerts.Findings {
		b.add(f)
	}
	for _, p := range a.Alerts.Patterns {
		b.add(p)
	}
	for _, f := range a.LongConns {
		b.add(f)
	}

	profiles := make(Profiles, len(b.drafts))
	for ip, d := range b.drafts {
		profiles[ip] = d.finish()
	}

	e.crossCorrelate(profiles, a)
	for _, p := range profiles {
		p.summarize()
	}
	return profiles
}

// crossCorrelate boosts hosts that beacon and tunnel at once, and hosts
// that beacon to a destination shared with other sources
func (e *Engine) crossCorrelate(profiles Profiles, a *Analysis) {
	factor := e.conf.BoostFactor
	if factor < 1 {
		factor = 1
	}

	tunnelers := make(data.StringSet)
	for _, t := range a.DNS.Tunneling {
		tunnelers.Insert(t.SrcIP)
	}
	beaconers := make(data.StringSet)
	for _, f := range a.Beacons {
		beaconers.Insert(f.Key.SrcIP)
	}
	for _, ip := range beaconers.Items() {
		if tunnelers.Contains(ip) {
			if p, ok := profiles[ip]; ok {
				p.boost(factor, "beaconing and DNS tunneling from the same host")
			}
		}
	}

	for src, dsts := range beaconClusters(a.Beacons, e.conf.MinClusterHosts) {
		p, ok := profiles[src]
		if !ok {
			continue
		}
		peers := make(data.StringSet)
		peers.Insert(p.RelatedIPs...)
		for _, dst := range dsts {
			for _, peer := range dst.sources {
				if peer != src {
					peers.Insert(peer)
				}
			}
		}
		p.RelatedIPs = peers.Items()
		p.boost(factor, clusterReason(dsts))
	}
}

// cluster is a destination several sources beacon to
type cluster struct {
	dst     string
	sources []string
}

// beaconClusters maps every source to the clusters it belongs to
func beaconClusters(beacons []*beacon.Finding, minHosts int) map[string][]cluster {
	if minHosts < 2 {
		minHosts = 2
	}
	byDst := make(map[string]data.StringSet)
	for _, f := range beacons {
		if byDst[f.Key.DstIP] == nil {
			byDst[f.Key.DstIP] = make(data.StringSet)
		}
		byDst[f.Key.DstIP].Insert(f.Key.SrcIP)
	}

	dsts := make([]string, 0, len(byDst))
	for dst := range byDst {
		dsts = append(dsts, dst)
	}
	sort.Strings(dsts)

	membership := make(map[string][]cluster)
	for _, dst := range dsts {
		sources := byDst[dst].Items()
		if len(sources) < minHosts {
			continue
		}
		c := cluster{dst: dst, sources: sources}
		for _, src := range sources {
			membership[src] = append(membership[src], c)
		}
	}
	return membership
}

func clusterReason(clusters []cluster) string {
	if len(clusters) == 1 {
		return fmt.Sprintf("one of %d hosts beaconing to %s", len(clusters[0].sources), clusters[0].dst)
	}
	dsts := make([]string, 0, len(clusters))
	for _, c := range clusters {
		dsts = append(dsts, c.dst)
	}
	return fmt.Sprintf("member of %d beacon clusters (%s)", len(clusters), strings.Join(dsts, ", "))
}

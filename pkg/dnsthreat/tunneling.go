package dnsthreat

import (
	"fmt"
	"math"
	"strings"

	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/util"
)

// subdomains below both gates look like ordinary host names
const (
	tunnelEntropyGate = 2.5
	tunnelLengthGate  = 15
)

// random hex labels of 25 characters average about 3.5 bits, base32 and
// base36 labels more
const tunnelEntropySaturation = 3.4

type (
	//TunnelingComponents are the 0-1 sub scores of a tunneling finding
	TunnelingComponents struct {
		Entropy float64 `json:"entropy" bson:"entropy"`
		Length  float64 `json:"length" bson:"length"`
		Volume  float64 `json:"volume" bson:"volume"`
		Unique  float64 `json:"unique" bson:"unique"`
		TXT     float64 `json:"txt" bson:"txt"`
		NX      float64 `json:"nx" bson:"nx"`
		Unusual float64 `json:"unusual" bson:"unusual"`
	}

	//TunnelingFinding marks a source moving data through the subdomains
	//of one registrable domain
	TunnelingFinding struct {
		common             `bson:",inline"`
		QueryCount         int                 `json:"query_count" bson:"query_count"`
		UniqueSubdomains   int                 `json:"unique_subdomains" bson:"unique_subdomains"`
		AvgEntropy         float64             `json:"avg_entropy" bson:"avg_entropy"`
		AvgLength          float64             `json:"avg_length" bson:"avg_length"`
		TXTRatio           float64             `json:"txt_ratio" bson:"txt_ratio"`
		NXRatio            float64             `json:"nx_ratio" bson:"nx_ratio"`
		UnusualTypeQueries int                 `json:"unusual_type_queries" bson:"unusual_type_queries"`
		Components         TunnelingComponents `json:"components" bson:"components"`
	}
)

// Variant implements Finding
func (f *TunnelingFinding) Variant() Variant { return VariantTunneling }

// Kind implements finding.Evidence
func (f *TunnelingFinding) Kind() string { return string(VariantTunneling) }

// Describe implements finding.Evidence
func (f *TunnelingFinding) Describe() string {
	return describe(VariantTunneling, f.DomainName, f.SrcIP, f.TotalScore)
}

type pairKey struct {
	src    string
	domain string
}

// tunneling groups queries by source and registrable domain and scores the
// randomness, length and volume of the subdomains
func (d *Detector) tunneling(queries []query) []*TunnelingFinding {
	groups := make(map[pairKey][]*query)
	for i := range queries {
		q := &queries[i]
		if !q.parts.ok {
			continue
		}
		key := pairKey{q.src, q.parts.Registrable}
		groups[key] = append(groups[key], q)
	}

	var results []*TunnelingFinding
	for key, group := range groups {
		if len(group) < d.conf.MinTunnelQueries {
			continue
		}
		f := scoreTunneling(key, group)
		if f == nil || f.TotalScore < d.conf.MinTunnelScore {
			continue
		}
		results = append(results, f)
	}
	sortFindings(results)
	return results
}

// scoreTunneling returns nil when the subdomains look like host names
func scoreTunneling(key pairKey, group []*query) *TunnelingFinding {
	n := float64(len(group))
	unique := make(map[string]struct{})
	var entropySum, lengthSum float64
	var txt, nx, unusual int

	for _, q := range group {
		sub := stripDots(q.parts.Subdomain)
		entropySum += util.ShannonEntropy(sub)
		lengthSum += float64(len(sub))
		if q.parts.Subdomain != "" {
			unique[q.parts.Subdomain] = struct{}{}
		}
		if strings.EqualFold(q.qtype, "TXT") {
			txt++
		}
		if q.nx {
			nx++
		}
		if isUnusualType(q.qtype) {
			unusual++
		}
	}

	avgEntropy := entropySum / n
	avgLength := lengthSum / n
	if avgEntropy < tunnelEntropyGate && avgLength < tunnelLengthGate {
		return nil
	}

	comps := TunnelingComponents{
		Entropy: util.Clamp01((avgEntropy - tunnelEntropyGate) / (tunnelEntropySaturation - tunnelEntropyGate)),
		Length:  util.Clamp01(avgLength / 40),
		Volume:  util.Clamp01(math.Log10(n) / 3),
		Unique:  float64(len(unique)) / n,
		TXT:     float64(txt) / n,
		NX:      float64(nx) / n,
		Unusual: util.Clamp01(float64(unusual) / 10),
	}
	score := 100 * (0.30*comps.Entropy +
		0.20*comps.Length +
		0.15*comps.Volume +
		0.15*comps.Unique +
		0.10*comps.TXT +
		0.05*comps.NX +
		0.05*comps.Unusual)

	f := &TunnelingFinding{
		common:             common{DomainName: key.domain, SrcIP: key.src},
		QueryCount:         len(group),
		UniqueSubdomains:   len(unique),
		AvgEntropy:         avgEntropy,
		AvgLength:          avgLength,
		TXTRatio:           comps.TXT,
		NXRatio:            comps.NX,
		UnusualTypeQueries: unusual,
		Components:         comps,
	}
	f.SetScore(score)
	f.SetConfidence(0.3 + 0.4*comps.Volume + 0.3*comps.Entropy)
	for _, q := range group {
		f.Observe(q.ts)
	}

	ids := finding.NewTechniqueSet(mitre.DNS)
	if f.TotalScore >= 60 {
		ids.Add(mitre.ProtocolTunneling)
	}
	if (comps.TXT >= 0.3 || avgLength >= 40) && f.TotalScore >= 70 {
		ids.Add(mitre.ExfilUnencryptedProtocol)
	}
	f.SetTechniques(ids)

	f.AddReason(fmt.Sprintf("%d queries with average subdomain entropy %.2f bits", len(group), avgEntropy))
	f.AddReason(fmt.Sprintf("average subdomain length %.1f characters", avgLength))
	f.AddReason(fmt.Sprintf("%.0f%% of subdomains unique", comps.Unique*100))
	if txt > 0 {
		f.AddReason(fmt.Sprintf("%.0f%% TXT queries", comps.TXT*100))
	}
	if nx > 0 {
		f.AddReason(fmt.Sprintf("%.0f%% NXDOMAIN responses", comps.NX*100))
	}
	if unusual > 0 {
		f.AddReason(fmt.Sprintf("%d queries with unusual record types", unusual))
	}
	return f
}

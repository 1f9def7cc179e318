package correlate

import (
	"fmt"
	"sort"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
)

// Get returns the profile of ip
func (ps Profiles) Get(ip string) (*Profile, error) {
	p, ok := ps[ip]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, ip)
	}
	return p, nil
}

// Sorted returns every profile ordered by score, highest first, then by
// address
func (ps Profiles) Sorted() []*Profile {
	out := make([]*Profile, 0, len(ps))
	for _, p := range ps {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].IP < out[j].IP
	})
	return out
}

// Top returns the n highest scoring profiles. A non positive n returns all.
func (ps Profiles) Top(n int) []*Profile {
	sorted := ps.Sorted()
	if n > 0 && n < len(sorted) {
		return sorted[:n]
	}
	return sorted
}

// AtLeast returns the profiles rated level or worse, highest score first
func (ps Profiles) AtLeast(level finding.Level) []*Profile {
	var out []*Profile
	for _, p := range ps.Sorted() {
		if p.ThreatLevel.AtLeast(level) {
			out = append(out, p)
		}
	}
	return out
}

// Overview counts technique and tactic occurrences across all profiles
func (ps Profiles) Overview() Overview {
	o := Overview{
		Hosts:          len(ps),
		Levels:         make(map[finding.Level]int),
		Techniques:     make(map[string]int),
		Tactics:        make(map[string]int),
		TechniqueHosts: make(map[string][]string),
	}
	hosts := make(map[string]data.StringSet)
	for ip, p := range ps {
		o.Levels[p.ThreatLevel]++
		for id, te := range p.TechniqueEvidence {
			o.Techniques[id] += te.DetectionCount
			for _, tactic := range te.Tactics {
				o.Tactics[tactic] += te.DetectionCount
			}
			if hosts[id] == nil {
				hosts[id] = make(data.StringSet)
			}
			hosts[id].Insert(ip)
		}
	}
	for id, set := range hosts {
		o.TechniqueHosts[id] = set.Items()
	}
	return o
}

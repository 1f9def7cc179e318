package beacon

import (
	"sort"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Detector finds regular, low jitter connection series
type Detector struct {
	conf      Config
	allowlist Allowlist
	log       *log.Logger
}

// NewDetector creates a beacon detector. A nil allowlist disables
// allowlisting altogether.
func NewDetector(conf Config, allowlist Allowlist, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Detector{conf: conf, allowlist: allowlist, log: logger}
}

// group collects the observations of every endpoint tuple in the store
func group(s *store.Store) map[Key][]observation {
	groups := make(map[Key][]observation)
	s.EachConnection(func(c *data.Connection) {
		key := Key{SrcIP: c.SrcIP, DstIP: c.DstIP, DstPort: c.DstPort, Proto: c.Proto, Service: c.Service}
		groups[key] = append(groups[key], observation{ts: c.Timestamp, bytes: c.OrigBytes})
	})
	return groups
}

// Analyze scores every endpoint tuple in the store and returns the beacons
// ordered by score, highest first
func (d *Detector) Analyze(s *store.Store) []*Finding {
	groups := group(s)
	a := &analyzer{conf: d.conf}

	var results []*Finding
	var skipped struct{ small, short, allowed, jittery, low int }

	for key, obs := range groups {
		if len(obs) < 2 || len(obs) < d.conf.MinConnections {
			skipped.small++
			continue
		}
		if !d.conf.IncludeAllowlisted && d.allowlist != nil &&
			d.allowlist.IsAllowed(key.SrcIP, key.DstIP, key.DstPort, key.Service) {
			skipped.allowed++
			continue
		}

		sortObservations(obs)
		if span(obs) < d.conf.MinWindow {
			skipped.short++
			continue
		}

		f := a.analyze(key, obs)
		if f.Interval.JitterPct > d.conf.MaxJitterPct {
			skipped.jittery++
			continue
		}
		if f.TotalScore < d.conf.MinScore {
			skipped.low++
			continue
		}
		results = append(results, f)
	}

	sortFindings(results)

	d.log.WithFields(log.Fields{
		"groups":          len(groups),
		"beacons":         len(results),
		"too_few":         skipped.small,
		"too_short":       skipped.short,
		"allowlisted":     skipped.allowed,
		"too_much_jitter": skipped.jittery,
		"below_score":     skipped.low,
	}).Debug("beacon analysis complete")

	return results
}

// sortFindings orders by score descending, then by key
func sortFindings(results []*Finding) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].Key.String() < results[j].Key.String()
	})
}

// Package dnsthreat scores DNS activity for tunneling, generated domains,
// fast flux hosting and other suspicious query patterns.
package dnsthreat

import (
	"sort"
	"strings"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/activecm/threatfuse/util"
	log "github.com/sirupsen/logrus"
)

// query is the part of a DNS record the detectors look at, with the query
// name already split
type query struct {
	ts    time.Time
	src   string
	name  string
	parts domainParts
	qtype string
	nx    bool
	ipv4  []string
	ttls  []float64
}

// Detector runs every DNS analysis over a store
type Detector struct {
	conf    Config
	domains *domainSplitter
	log     *log.Logger
}

// NewDetector creates a DNS threat detector
func NewDetector(conf Config, logger *log.Logger) (*Detector, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	domains, err := newDomainSplitter(conf.DomainCacheSize)
	if err != nil {
		return nil, err
	}
	return &Detector{conf: conf, domains: domains, log: logger}, nil
}

// collect copies the DNS records of the store, dropping never include domains
func (d *Detector) collect(s *store.Store) []query {
	queries := make([]query, 0, s.Counts().DNSQueries)
	s.EachDNSQuery(func(rec *data.DNSQuery) {
		name := rec.Name()
		if name == "" || util.ContainsDomain(d.conf.NeverInclude, name) {
			return
		}
		q := query{
			ts:    rec.Timestamp,
			src:   rec.SrcIP,
			name:  name,
			parts: d.domains.split(name),
			qtype: strings.ToUpper(rec.QType),
			nx:    rec.IsNXDomain(),
			ttls:  rec.TTLs,
		}
		for _, answer := range rec.Answers {
			if util.IsIPv4Literal(answer) {
				q.ipv4 = append(q.ipv4, answer)
			}
		}
		queries = append(queries, q)
	})
	return queries
}

// Analyze runs the tunneling, DGA, fast flux and suspicious pattern
// analyses and summarizes their findings
func (d *Detector) Analyze(s *store.Store) *Summary {
	queries := d.collect(s)
	sum := &Summary{QueriesAnalyzed: len(queries)}
	for i := range queries {
		ts := queries[i].ts
		if sum.Window.Start.IsZero() || ts.Before(sum.Window.Start) {
			sum.Window.Start = ts
		}
		if ts.After(sum.Window.End) {
			sum.Window.End = ts
		}
	}

	sum.Tunneling = d.tunneling(queries)
	sum.DGA = d.dga(queries)
	sum.FastFlux = d.fastFlux(queries)
	sum.Suspicious = d.suspicious(queries)

	sum.TopTunneling = top(sum.Tunneling)
	sum.TopDGA = top(sum.DGA)
	sum.TopFastFlux = top(sum.FastFlux)
	sum.TopSuspicious = top(sum.Suspicious)

	d.log.WithFields(log.Fields{
		"queries":    len(queries),
		"tunneling":  len(sum.Tunneling),
		"dga":        len(sum.DGA),
		"fast_flux":  len(sum.FastFlux),
		"suspicious": len(sum.Suspicious),
	}).Debug("dns threat analysis complete")

	return sum
}

// keyed findings can be ordered deterministically
type keyed interface {
	Finding
	key() string
}

func (c *common) key() string {
	return c.DomainName + "|" + c.SrcIP
}

// sortFindings orders by score descending, then by domain and source
func sortFindings[F keyed](results []F) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].key() < results[j].key()
	})
}

func top[F any](results []F) []F {
	if len(results) > topCount {
		return results[:topCount]
	}
	return results
}

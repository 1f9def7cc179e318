package store

import (
	"strings"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
)

// Filter narrows record retrieval. Zero valued fields do not constrain the
// result. IP matches either side of a record; SrcIP and DstIP match one side.
// Start is inclusive and End is exclusive.
type Filter struct {
	IP          string
	SrcIP       string
	DstIP       string
	Port        int
	Proto       string
	Service     string
	MinDuration float64
	Start       time.Time
	End         time.Time
	Offset      int
	Limit       int
}

func (f *Filter) inWindow(t time.Time) bool {
	if !f.Start.IsZero() && t.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !t.Before(f.End) {
		return false
	}
	return true
}

func (f *Filter) matchesAddrs(src, dst string) bool {
	if f.SrcIP != "" && src != f.SrcIP {
		return false
	}
	if f.DstIP != "" && dst != f.DstIP {
		return false
	}
	if f.IP != "" && src != f.IP && dst != f.IP {
		return false
	}
	return true
}

func (f *Filter) matchesPorts(srcPort, dstPort int) bool {
	return f.Port == 0 || srcPort == f.Port || dstPort == f.Port
}

func (f *Filter) matchesProto(proto string) bool {
	return f.Proto == "" || strings.EqualFold(proto, f.Proto)
}

func (f *Filter) matchConnection(c *data.Connection) bool {
	return f.matchesAddrs(c.SrcIP, c.DstIP) &&
		f.matchesPorts(c.SrcPort, c.DstPort) &&
		f.matchesProto(c.Proto) &&
		(f.Service == "" || strings.EqualFold(c.Service, f.Service)) &&
		c.Duration >= f.MinDuration &&
		f.inWindow(c.Timestamp)
}

func (f *Filter) matchDNSQuery(q *data.DNSQuery) bool {
	return f.matchesAddrs(q.SrcIP, q.DstIP) &&
		f.matchesPorts(q.SrcPort, q.DstPort) &&
		(f.Service == "" || strings.EqualFold(f.Service, "dns")) &&
		f.inWindow(q.Timestamp)
}

func (f *Filter) matchAlert(a *data.Alert) bool {
	return f.matchesAddrs(a.SrcIP, a.DstIP) &&
		f.matchesPorts(a.SrcPort, a.DstPort) &&
		f.matchesProto(a.Proto) &&
		(f.Service == "" || strings.EqualFold(a.AppProto, f.Service)) &&
		f.inWindow(a.Timestamp)
}

// page applies offset and limit to the running match count. It reports
// whether the n-th match (zero based) belongs on the page and whether
// collection may stop.
func (f *Filter) page(n, collected int) (take bool, done bool) {
	if f.Limit > 0 && collected >= f.Limit {
		return false, true
	}
	return n >= f.Offset, false
}

// Connections returns the connections matching f in insertion order
func (s *Store) Connections(f Filter) []data.Connection {
	var out []data.Connection
	visit(s.connIdx, &f, len(s.conns), func(pos int) bool {
		return f.matchConnection(&s.conns[pos])
	}, func(pos int) {
		out = append(out, s.conns[pos])
	})
	return out
}

// DNSQueries returns the DNS records matching f in insertion order.
// MinDuration does not apply to DNS records.
func (s *Store) DNSQueries(f Filter) []data.DNSQuery {
	var out []data.DNSQuery
	visit(s.dnsIdx, &f, len(s.dns), func(pos int) bool {
		return f.matchDNSQuery(&s.dns[pos])
	}, func(pos int) {
		out = append(out, s.dns[pos])
	})
	return out
}

// Alerts returns the alerts matching f in insertion order. Service matches
// the alert's application protocol. MinDuration does not apply to alerts.
func (s *Store) Alerts(f Filter) []data.Alert {
	var out []data.Alert
	visit(s.alertIdx, &f, len(s.alerts), func(pos int) bool {
		return f.matchAlert(&s.alerts[pos])
	}, func(pos int) {
		out = append(out, s.alerts[pos])
	})
	return out
}

// visit walks either the indexed candidate positions or every record and
// calls emit for each match on the requested page
func visit(idx ipIndex, f *Filter, total int, match func(int) bool, emit func(int)) {
	positions, all := idx.candidates(f)
	n, collected := 0, 0
	check := func(pos int) bool {
		if !match(pos) {
			return true
		}
		take, done := f.page(n, collected)
		if done {
			return false
		}
		n++
		if take {
			emit(pos)
			collected++
		}
		return true
	}
	if all {
		for pos := 0; pos < total; pos++ {
			if !check(pos) {
				return
			}
		}
		return
	}
	for _, pos := range positions {
		if !check(pos) {
			return
		}
	}
}

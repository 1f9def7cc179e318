// Package store holds the normalized telemetry for the current analysis
// window. The store is append only between calls to Clear and performs no
// locking of its own: callers that ingest concurrently with analysis must
// serialize access themselves.
package store

import (
	"sort"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
)

// Store is an in-memory collection of connection, DNS and alert records with
// source and destination IP indices
type Store struct {
	conns  []data.Connection
	dns    []data.DNSQuery
	alerts []data.Alert

	connIdx  ipIndex
	dnsIdx   ipIndex
	alertIdx ipIndex
}

// Counts summarizes the number of records held
type Counts struct {
	Connections int `json:"connections"`
	DNSQueries  int `json:"dns_queries"`
	Alerts      int `json:"alerts"`
}

// Total returns the number of records of every kind
func (c Counts) Total() int {
	return c.Connections + c.DNSQueries + c.Alerts
}

// New creates an empty Store
func New() *Store {
	return &Store{
		connIdx:  newIPIndex(),
		dnsIdx:   newIPIndex(),
		alertIdx: newIPIndex(),
	}
}

// InsertConnection appends a connection record
func (s *Store) InsertConnection(c data.Connection) {
	s.connIdx.add(c.SrcIP, c.DstIP, len(s.conns))
	s.conns = append(s.conns, c)
}

// InsertDNSQuery appends a DNS record
func (s *Store) InsertDNSQuery(q data.DNSQuery) {
	s.dnsIdx.add(q.SrcIP, q.DstIP, len(s.dns))
	s.dns = append(s.dns, q)
}

// InsertAlert appends an alert record
func (s *Store) InsertAlert(a data.Alert) {
	s.alertIdx.add(a.SrcIP, a.DstIP, len(s.alerts))
	s.alerts = append(s.alerts, a)
}

// Clear drops every record and index entry
func (s *Store) Clear() {
	s.conns = nil
	s.dns = nil
	s.alerts = nil
	s.connIdx = newIPIndex()
	s.dnsIdx = newIPIndex()
	s.alertIdx = newIPIndex()
}

// Counts returns the number of records of each kind
func (s *Store) Counts() Counts {
	return Counts{
		Connections: len(s.conns),
		DNSQueries:  len(s.dns),
		Alerts:      len(s.alerts),
	}
}

// Empty reports whether the store holds no records at all
func (s *Store) Empty() bool {
	return s.Counts().Total() == 0
}

// EachConnection calls fn for every connection in insertion order. fn must
// not retain or modify the record.
func (s *Store) EachConnection(fn func(*data.Connection)) {
	for i := range s.conns {
		fn(&s.conns[i])
	}
}

// EachDNSQuery calls fn for every DNS record in insertion order. fn must
// not retain or modify the record.
func (s *Store) EachDNSQuery(fn func(*data.DNSQuery)) {
	for i := range s.dns {
		fn(&s.dns[i])
	}
}

// EachAlert calls fn for every alert in insertion order. fn must not retain
// or modify the record.
func (s *Store) EachAlert(fn func(*data.Alert)) {
	for i := range s.alerts {
		fn(&s.alerts[i])
	}
}

// TimeRange returns the earliest and latest timestamps across every record
// kind. ok is false when the store is empty.
func (s *Store) TimeRange() (min time.Time, max time.Time, ok bool) {
	observe := func(t time.Time) {
		if !ok {
			min, max, ok = t, t, true
			return
		}
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	for i := range s.conns {
		observe(s.conns[i].Timestamp)
	}
	for i := range s.dns {
		observe(s.dns[i].Timestamp)
	}
	for i := range s.alerts {
		observe(s.alerts[i].Timestamp)
	}
	return min, max, ok
}

// UniqueIPs returns every source or destination address seen, sorted
func (s *Store) UniqueIPs() []string {
	set := make(map[string]struct{})
	for _, idx := range []ipIndex{s.connIdx, s.dnsIdx, s.alertIdx} {
		for ip := range idx.bySrc {
			set[ip] = struct{}{}
		}
		for ip := range idx.byDst {
			set[ip] = struct{}{}
		}
	}
	ips := make([]string, 0, len(set))
	for ip := range set {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// ipIndex maps addresses to record positions. Positions are appended in
// insertion order so each list stays sorted.
type ipIndex struct {
	bySrc map[string][]int
	byDst map[string][]int
}

func newIPIndex() ipIndex {
	return ipIndex{
		bySrc: make(map[string][]int),
		byDst: make(map[string][]int),
	}
}

func (x ipIndex) add(src, dst string, pos int) {
	if src != "" {
		x.bySrc[src] = append(x.bySrc[src], pos)
	}
	if dst != "" {
		x.byDst[dst] = append(x.byDst[dst], pos)
	}
}

// candidates returns the record positions matching the address constraints
// of f, or nil with all=true when no address constraint applies
func (x ipIndex) candidates(f *Filter) (positions []int, all bool) {
	switch {
	case f.SrcIP != "" && f.DstIP != "":
		return intersect(x.bySrc[f.SrcIP], x.byDst[f.DstIP]), false
	case f.SrcIP != "":
		return x.bySrc[f.SrcIP], false
	case f.DstIP != "":
		return x.byDst[f.DstIP], false
	case f.IP != "":
		return union(x.bySrc[f.IP], x.byDst[f.IP]), false
	}
	return nil, true
}

// intersect merges two ascending position lists
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// union merges two ascending position lists without duplicates
func union(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

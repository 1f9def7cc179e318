// Package data holds the normalized telemetry records shared by the store,
// the detectors and the loaders. Records are created once at ingestion and
// never modified afterwards.
package data

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingAddress is returned when a record lacks a source or destination IP
	ErrMissingAddress = errors.New("record is missing a source or destination address")
	// ErrMissingTimestamp is returned when a record has no timestamp
	ErrMissingTimestamp = errors.New("record is missing a timestamp")
)

// Connection is a single normalized connection record
type Connection struct {
	Timestamp   time.Time `json:"ts" bson:"ts"`
	SrcIP       string    `json:"src" bson:"src"`
	SrcPort     int       `json:"src_port" bson:"src_port"`
	DstIP       string    `json:"dst" bson:"dst"`
	DstPort     int       `json:"dst_port" bson:"dst_port"`
	Proto       string    `json:"proto" bson:"proto"`
	Service     string    `json:"service" bson:"service"`
	Duration    float64   `json:"duration" bson:"duration"`
	OrigBytes   int64     `json:"orig_bytes" bson:"orig_bytes"`
	RespBytes   int64     `json:"resp_bytes" bson:"resp_bytes"`
	OrigPackets int64     `json:"orig_pkts" bson:"orig_pkts"`
	RespPackets int64     `json:"resp_pkts" bson:"resp_pkts"`
	Origin      string    `json:"origin" bson:"origin"`
}

// TotalBytes returns the bytes transferred in both directions
func (c *Connection) TotalBytes() int64 {
	return c.OrigBytes + c.RespBytes
}

// Tuple returns the port:protocol:service string used in listings
func (c *Connection) Tuple() string {
	return strconv.Itoa(c.DstPort) + ":" + c.Proto + ":" + c.Service
}

// Validate checks the fields every detector relies upon
func (c *Connection) Validate() error {
	if c.SrcIP == "" || c.DstIP == "" {
		return ErrMissingAddress
	}
	if c.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// DNSQuery is a single normalized DNS transaction
type DNSQuery struct {
	Timestamp time.Time `json:"ts" bson:"ts"`
	SrcIP     string    `json:"src" bson:"src"`
	SrcPort   int       `json:"src_port" bson:"src_port"`
	DstIP     string    `json:"dst" bson:"dst"`
	DstPort   int       `json:"dst_port" bson:"dst_port"`
	Query     string    `json:"query" bson:"query"`
	QType     string    `json:"qtype" bson:"qtype"`
	RCode     string    `json:"rcode" bson:"rcode"`
	Answers   []string  `json:"answers" bson:"answers"`
	TTLs      []float64 `json:"ttls" bson:"ttls"`
	Origin    string    `json:"origin" bson:"origin"`
}

// Name returns the lower cased query without a trailing dot
func (q *DNSQuery) Name() string {
	return strings.TrimSuffix(strings.ToLower(q.Query), ".")
}

// IsNXDomain reports whether the query failed with a name error
func (q *DNSQuery) IsNXDomain() bool {
	return strings.EqualFold(q.RCode, "NXDOMAIN") || q.RCode == "3"
}

// Validate checks the fields every detector relies upon
func (q *DNSQuery) Validate() error {
	if q.SrcIP == "" {
		return ErrMissingAddress
	}
	if q.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if q.Query == "" {
		return errors.New("dns record is missing a query name")
	}
	return nil
}

// Alert is a single normalized intrusion detection alert. Severity follows
// the usual IDS convention of 1 = high through 3 = low.
type Alert struct {
	Timestamp   time.Time `json:"ts" bson:"ts"`
	SrcIP       string    `json:"src" bson:"src"`
	SrcPort     int       `json:"src_port" bson:"src_port"`
	DstIP       string    `json:"dst" bson:"dst"`
	DstPort     int       `json:"dst_port" bson:"dst_port"`
	Proto       string    `json:"proto" bson:"proto"`
	AppProto    string    `json:"app_proto" bson:"app_proto"`
	Signature   string    `json:"signature" bson:"signature"`
	SignatureID int       `json:"signature_id" bson:"signature_id"`
	Category    string    `json:"category" bson:"category"`
	Severity    int       `json:"severity" bson:"severity"`
	Action      string    `json:"action" bson:"action"`
}

// Validate checks the fields every detector relies upon
func (a *Alert) Validate() error {
	if a.SrcIP == "" || a.DstIP == "" {
		return ErrMissingAddress
	}
	if a.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

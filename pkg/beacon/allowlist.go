package beacon

import (
	"net"
	"strings"

	"github.com/activecm/threatfuse/util"
)

// Allowlist decides whether a connection tuple is known benign
type Allowlist interface {
	IsAllowed(srcIP, dstIP string, dstPort int, service string) bool
}

// AllowlistFunc adapts a plain function to the Allowlist interface
type AllowlistFunc func(srcIP, dstIP string, dstPort int, service string) bool

// IsAllowed calls f
func (f AllowlistFunc) IsAllowed(srcIP, dstIP string, dstPort int, service string) bool {
	return f(srcIP, dstIP, dstPort, service)
}

// well known public resolvers
var defaultAllowedIPs = []string{
	"8.8.8.8", "8.8.4.4",
	"1.1.1.1", "1.0.0.1",
	"9.9.9.9",
	"208.67.222.222", "208.67.220.220",
}

// DefaultAllowlist excludes public resolvers, DNS and NTP traffic, and
// any configured networks
type DefaultAllowlist struct {
	ips      map[string]struct{}
	ports    map[int]struct{}
	services map[string]struct{}
	nets     []*net.IPNet
}

// NewDefaultAllowlist creates the default policy extended with nets
func NewDefaultAllowlist(nets []*net.IPNet) *DefaultAllowlist {
	a := &DefaultAllowlist{
		ips:      make(map[string]struct{}, len(defaultAllowedIPs)),
		ports:    map[int]struct{}{53: {}, 123: {}},
		services: map[string]struct{}{"dns": {}, "ntp": {}},
		nets:     nets,
	}
	for _, ip := range defaultAllowedIPs {
		a.ips[ip] = struct{}{}
	}
	return a
}

// IsAllowed implements Allowlist
func (a *DefaultAllowlist) IsAllowed(srcIP, dstIP string, dstPort int, service string) bool {
	if _, ok := a.ips[dstIP]; ok {
		return true
	}
	if _, ok := a.ports[dstPort]; ok {
		return true
	}
	if _, ok := a.services[strings.ToLower(service)]; ok {
		return true
	}
	if len(a.nets) > 0 && util.ContainsIP(a.nets, net.ParseIP(dstIP)) {
		return true
	}
	return false
}

package dnsthreat

import (
	"fmt"
	"strings"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/finding"
)

// Variant distinguishes the DNS finding kinds
type Variant string

// DNS finding variants
const (
	VariantTunneling  Variant = "dns_tunneling"
	VariantDGA        Variant = "dga"
	VariantFastFlux   Variant = "fast_flux"
	VariantSuspicious Variant = "dns_suspicious"
)

// Suspicious pattern names
const (
	PatternNXDomain    = "excessive_nxdomain"
	PatternUnusualType = "unusual_query_types"
	PatternQueryRate   = "high_query_rate"
)

// topCount is the length of the per category top lists in a Summary
const topCount = 10

type (
	//Config holds the thresholds of the DNS threat analysis
	Config struct {
		MinTunnelQueries int
		MinTunnelScore   float64
		// MinDGALength is the minimum length of the label left of the
		// public suffix, "ab12x" in ab12x.com
		MinDGALength          int
		MinDGAScore           float64
		FastFluxMinIPs        int
		FastFluxMinSpan       time.Duration
		MinFastFluxScore      float64
		NXDomainMinQueries    int
		NXDomainRatio         float64
		UnusualTypeMinQueries int
		UnusualTypeRatio      float64
		MaxQueriesPerMinute   int
		DomainCacheSize       int
		// NeverInclude lists domains, optionally wildcarded, that are never analyzed
		NeverInclude []string
	}

	//Finding is implemented by every DNS finding variant
	Finding interface {
		finding.Evidence
		Variant() Variant
		Domain() string
	}

	//common holds the fields shared by the DNS variants
	common struct {
		finding.Base `bson:",inline"`
		DomainName   string `json:"domain" bson:"domain"`
		SrcIP        string `json:"src,omitempty" bson:"src,omitempty"`
	}

	//Window is the time range the analysis covered
	Window struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}

	//Summary is the result of a full DNS analysis pass
	Summary struct {
		Tunneling       []*TunnelingFinding  `json:"tunneling"`
		DGA             []*DGAFinding        `json:"dga"`
		FastFlux        []*FastFluxFinding   `json:"fast_flux"`
		Suspicious      []*SuspiciousFinding `json:"suspicious"`
		TopTunneling    []*TunnelingFinding  `json:"top_tunneling"`
		TopDGA          []*DGAFinding        `json:"top_dga"`
		TopFastFlux     []*FastFluxFinding   `json:"top_fast_flux"`
		TopSuspicious   []*SuspiciousFinding `json:"top_suspicious"`
		Window          Window               `json:"window"`
		QueriesAnalyzed int                  `json:"queries_analyzed"`
	}
)

// DefaultConfig returns the stock DNS thresholds
func DefaultConfig() Config {
	return Config{
		MinTunnelQueries:      10,
		MinTunnelScore:        40,
		MinDGALength:          6,
		MinDGAScore:           65,
		FastFluxMinIPs:        3,
		FastFluxMinSpan:       time.Hour,
		MinFastFluxScore:      40,
		NXDomainMinQueries:    20,
		NXDomainRatio:         0.5,
		UnusualTypeMinQueries: 10,
		UnusualTypeRatio:      0.3,
		MaxQueriesPerMinute:   60,
		DomainCacheSize:       65536,
	}
}

// ConfigFrom reads the DNS and filtering sections of the static config
func ConfigFrom(conf *config.Config) Config {
	d := conf.S.DNS
	return Config{
		MinTunnelQueries:      d.MinTunnelQueries,
		MinTunnelScore:        d.MinTunnelScore,
		MinDGALength:          d.MinDGALength,
		MinDGAScore:           d.MinDGAScore,
		FastFluxMinIPs:        d.FastFluxMinIPs,
		FastFluxMinSpan:       time.Duration(d.FastFluxMinHours * float64(time.Hour)),
		MinFastFluxScore:      d.MinFastFluxScore,
		NXDomainMinQueries:    d.NXDomainMinQueries,
		NXDomainRatio:         d.NXDomainRatio,
		UnusualTypeMinQueries: d.UnusualTypeMinQueries,
		UnusualTypeRatio:      d.UnusualTypeRatio,
		MaxQueriesPerMinute:   d.MaxQueriesPerMinute,
		DomainCacheSize:       d.DomainCacheSize,
		NeverInclude:          conf.S.Filtering.NeverIncludeDomain,
	}
}

// Detector names the engine that produced the finding
func (c *common) Detector() finding.Detector { return finding.DetectorDNS }

// Domain returns the domain the finding is about. Per source findings
// have no domain.
func (c *common) Domain() string { return c.DomainName }

// RelatedDomains returns the finding's domain
func (c *common) RelatedDomains() []string {
	if c.DomainName == "" {
		return nil
	}
	return []string{c.DomainName}
}

// Hosts implicates the querying source
func (c *common) Hosts() []finding.HostRef {
	if c.SrcIP == "" {
		return nil
	}
	return []finding.HostRef{{IP: c.SrcIP, Role: finding.RoleSource}}
}

// RelatedIPs is empty unless a variant knows resolved addresses
func (c *common) RelatedIPs() []string { return nil }

// All returns every finding of the summary, tunneling first
func (s *Summary) All() []Finding {
	all := make([]Finding, 0, len(s.Tunneling)+len(s.DGA)+len(s.FastFlux)+len(s.Suspicious))
	for _, f := range s.Tunneling {
		all = append(all, f)
	}
	for _, f := range s.DGA {
		all = append(all, f)
	}
	for _, f := range s.FastFlux {
		all = append(all, f)
	}
	for _, f := range s.Suspicious {
		all = append(all, f)
	}
	return all
}

// Count returns the number of findings across every variant
func (s *Summary) Count() int {
	return len(s.Tunneling) + len(s.DGA) + len(s.FastFlux) + len(s.Suspicious)
}

func describe(v Variant, domain, src string, score float64) string {
	parts := []string{string(v)}
	if domain != "" {
		parts = append(parts, domain)
	}
	if src != "" {
		parts = append(parts, "from "+src)
	}
	return fmt.Sprintf("%s (score %.1f)", strings.Join(parts, " "), score)
}

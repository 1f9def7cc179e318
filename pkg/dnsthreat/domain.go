package dnsthreat

import (
	"net"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/publicsuffix"
)

// reverse lookup zones are never scored
var reverseZones = []string{"in-addr.arpa", "ip6.arpa"}

// domainParts is a query name split around its public suffix
type domainParts struct {
	// Registrable is the effective TLD plus one, e.g. example.co.uk
	Registrable string
	// Subdomain is everything left of Registrable without the joining dot
	Subdomain string
	// Label is the label directly left of the suffix, e.g. example
	Label string
	// Suffix is the public suffix, e.g. co.uk
	Suffix string
	ok     bool
}

// domainSplitter memoizes public suffix lookups. Query names repeat heavily
// in DNS logs.
type domainSplitter struct {
	cache *lru.Cache[string, domainParts]
}

func newDomainSplitter(size int) (*domainSplitter, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, domainParts](size)
	if err != nil {
		return nil, err
	}
	return &domainSplitter{cache: cache}, nil
}

// split returns the parts of a normalized query name. ok is false for
// reverse lookups, bare addresses and names without a registrable domain.
func (d *domainSplitter) split(name string) domainParts {
	if parts, ok := d.cache.Get(name); ok {
		return parts
	}
	parts := splitDomain(name)
	d.cache.Add(name, parts)
	return parts
}

func splitDomain(name string) domainParts {
	if name == "" || !strings.Contains(name, ".") || net.ParseIP(name) != nil {
		return domainParts{}
	}
	for _, zone := range reverseZones {
		if name == zone || strings.HasSuffix(name, "."+zone) {
			return domainParts{}
		}
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return domainParts{}
	}
	dot := strings.IndexByte(registrable, '.')
	if dot <= 0 {
		return domainParts{}
	}

	parts := domainParts{
		Registrable: registrable,
		Label:       registrable[:dot],
		Suffix:      registrable[dot+1:],
		ok:          true,
	}
	if name != registrable {
		parts.Subdomain = strings.TrimSuffix(name, "."+registrable)
	}
	return parts
}

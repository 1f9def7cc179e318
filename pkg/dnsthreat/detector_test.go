package dnsthreat

import (
	"fmt"
	"testing"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomLabel returns a high entropy label of length characters. The last
// four characters encode seed so labels never repeat.
func randomLabel(seed, length int) string {
	out := make([]byte, length)
	for i := 0; i < length-4; i++ {
		out[i] = alphabet[(seed*7+i)%len(alphabet)]
	}
	for i, n := length-1, seed; i >= length-4; i-- {
		out[i] = alphabet[n%len(alphabet)]
		n /= len(alphabet)
	}
	return string(out)
}

func newTestDetector(t *testing.T) *Detector {
	d, err := NewDetector(DefaultConfig(), nil)
	require.NoError(t, err)
	return d
}

func addQuery(s *store.Store, ts time.Time, src, name, qtype, rcode string, answers ...string) {
	s.InsertDNSQuery(data.DNSQuery{
		Timestamp: ts,
		SrcIP:     src,
		DstIP:     "10.0.0.53",
		DstPort:   53,
		Query:     name,
		QType:     qtype,
		RCode:     rcode,
		Answers:   answers,
	})
}

// addTunnel inserts count queries to distinct high entropy subdomains of domain
func addTunnel(s *store.Store, src, domain string, count int, every time.Duration) {
	for i := 0; i < count; i++ {
		addQuery(s, start.Add(time.Duration(i)*every), src, randomLabel(i, 30)+"."+domain, "A", "NOERROR")
	}
}

// encodedLabel returns a pseudo random label drawn from charset, the way
// tunneling tools encode their payload
func encodedLabel(seed, length int, charset string) string {
	x := uint32(seed)*2654435761 + 1
	out := make([]byte, length)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = charset[x%uint32(len(charset))]
	}
	return string(out)
}

func TestScenarioTunneling(t *testing.T) {
	encodings := []struct {
		name    string
		charset string
	}{
		{"hex", "0123456789abcdef"},
		{"base32", "abcdefghijklmnopqrstuvwxyz234567"},
		{"base36", alphabet},
	}
	for _, enc := range encodings {
		t.Run(enc.name, func(t *testing.T) {
			s := store.New()
			for i := 0; i < 15; i++ {
				name := encodedLabel(i, 25, enc.charset) + ".tunnel.example"
				addQuery(s, start.Add(time.Duration(i)*20*time.Second), "192.0.2.20", name, "A", "NOERROR")
			}

			sum := newTestDetector(t).Analyze(s)
			require.Len(t, sum.Tunneling, 1)

			f := sum.Tunneling[0]
			assert.Equal(t, "tunnel.example", f.Domain())
			assert.Equal(t, "192.0.2.20", f.SrcIP)
			assert.Equal(t, 15, f.QueryCount)
			assert.Equal(t, 15, f.UniqueSubdomains)
			assert.Equal(t, 25.0, f.AvgLength)
			assert.GreaterOrEqual(t, f.Score(), 60.0)
			assert.Contains(t, f.Techniques(), mitre.DNS)
			assert.Contains(t, f.Techniques(), mitre.ProtocolTunneling)
			assert.Equal(t, start, f.FirstSeen())
			assert.Equal(t, start.Add(14*20*time.Second), f.LastSeen())
			assert.Equal(t, VariantTunneling, f.Variant())

			assert.Empty(t, sum.DGA)
			assert.Empty(t, sum.Suspicious)
			assert.Equal(t, 15, sum.QueriesAnalyzed)
			assert.Equal(t, Window{Start: start, End: start.Add(280 * time.Second)}, sum.Window)
		})
	}
}

func TestTunnelingExfilTechnique(t *testing.T) {
	s := store.New()
	for i := 0; i < 200; i++ {
		name := randomLabel(i, 30) + "." + randomLabel(i+1, 20) + ".exfil.example"
		addQuery(s, start.Add(time.Duration(i)*time.Second), "10.0.0.7", name, "TXT", "NOERROR")
	}
	sum := newTestDetector(t).Analyze(s)
	require.Len(t, sum.Tunneling, 1)
	f := sum.Tunneling[0]
	assert.GreaterOrEqual(t, f.Score(), 70.0)
	assert.Equal(t, 1.0, f.TXTRatio)
	assert.Contains(t, f.Techniques(), mitre.ExfilUnencryptedProtocol)
}

func TestTunnelingGateIgnoresVolume(t *testing.T) {
	s := store.New()
	names := []string{"www", "mail", "host1", "vpn", "api"}
	for i := 0; i < 5000; i++ {
		addQuery(s, start.Add(time.Duration(i)*time.Second), "10.0.0.5", names[i%len(names)]+".busy.example", "TXT", "NXDOMAIN")
	}
	assert.Empty(t, newTestDetector(t).Analyze(s).Tunneling)
}

func TestTunnelingMinimumQueries(t *testing.T) {
	s := store.New()
	addTunnel(s, "192.0.2.20", "tunnel.example", 9, 20*time.Second)
	assert.Empty(t, newTestDetector(t).Analyze(s).Tunneling)
}

func TestTunnelingMonotonicInVolume(t *testing.T) {
	prev := 0.0
	for _, count := range []int{10, 20, 50, 200} {
		s := store.New()
		addTunnel(s, "192.0.2.20", "tunnel.example", count, time.Second)
		sum := newTestDetector(t).Analyze(s)
		require.Len(t, sum.Tunneling, 1)
		assert.GreaterOrEqual(t, sum.Tunneling[0].Score(), prev)
		prev = sum.Tunneling[0].Score()
	}
}

func TestDGA(t *testing.T) {
	s := store.New()
	for i := 0; i < 3; i++ {
		addQuery(s, start.Add(time.Duration(i)*time.Minute), "10.0.0.5", "xkqzjwpvbt.com", "A", "NXDOMAIN")
		addQuery(s, start.Add(time.Duration(i)*time.Minute), "10.0.0.5", "google.com", "A", "NOERROR", "142.250.0.1")
	}

	sum := newTestDetector(t).Analyze(s)
	require.Len(t, sum.DGA, 1)
	f := sum.DGA[0]
	assert.Equal(t, "xkqzjwpvbt.com", f.Domain())
	assert.Equal(t, "xkqzjwpvbt", f.Label)
	assert.Equal(t, 3, f.QueryCount)
	assert.Equal(t, 1.0, f.NXRatio)
	assert.Empty(t, f.RecognizableWord)
	assert.GreaterOrEqual(t, f.Score(), 80.0)
	assert.Equal(t, []string{mitre.DynamicResolution, mitre.DomainGenerationAlgorithm}, f.Techniques())
}

func TestDGASkipsShortAndReverseNames(t *testing.T) {
	s := store.New()
	// the length gate applies to the label left of the suffix
	addQuery(s, start, "10.0.0.5", "xkqzj.com", "A", "NXDOMAIN")
	addQuery(s, start, "10.0.0.5", "ab12x.com", "A", "NXDOMAIN")
	addQuery(s, start, "10.0.0.5", "4.3.2.1.in-addr.arpa", "PTR", "NXDOMAIN")
	assert.Empty(t, newTestDetector(t).Analyze(s).DGA)
}

func TestFastFlux(t *testing.T) {
	s := store.New()
	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * 12 * time.Minute)
		src := "10.0.0.5"
		if i%2 == 1 {
			src = "10.0.0.6"
		}
		s.InsertDNSQuery(data.DNSQuery{
			Timestamp: ts,
			SrcIP:     src,
			Query:     "cdn.fluxy.example",
			QType:     "A",
			RCode:     "NOERROR",
			Answers:   []string{fmt.Sprintf("198.51.100.%d", 2*i+1), fmt.Sprintf("198.51.100.%d", 2*i+2), "cname.fluxy.example"},
			TTLs:      []float64{60, 60, 60},
		})
	}
	// a stable domain never qualifies
	for i := 0; i < 10; i++ {
		addQuery(s, start.Add(time.Duration(i)*12*time.Minute), "10.0.0.5", "www.stable.example", "A", "NOERROR", "203.0.113.10")
	}

	sum := newTestDetector(t).Analyze(s)
	require.Len(t, sum.FastFlux, 1)
	f := sum.FastFlux[0]
	assert.Equal(t, "cdn.fluxy.example", f.Domain())
	assert.Len(t, f.ResolvedIPs, 20)
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, f.Sources)
	assert.Len(t, f.Hosts(), 2)
	assert.Equal(t, 9, f.AnswerChanges)
	assert.Equal(t, 60.0, f.AvgTTL)
	assert.GreaterOrEqual(t, f.Score(), 40.0)
	assert.Equal(t, []string{mitre.DynamicResolution, mitre.FastFluxDNS}, f.Techniques())
}

func TestFastFluxRequiresSpan(t *testing.T) {
	s := store.New()
	for i := 0; i < 10; i++ {
		addQuery(s, start.Add(time.Duration(i)*time.Minute), "10.0.0.5", "cdn.fluxy.example", "A", "NOERROR",
			fmt.Sprintf("198.51.100.%d", i+1))
	}
	assert.Empty(t, newTestDetector(t).Analyze(s).FastFlux)
}

func TestSuspiciousNXDomain(t *testing.T) {
	s := store.New()
	for i := 0; i < 25; i++ {
		rcode := "NOERROR"
		if i < 20 {
			rcode = "NXDOMAIN"
		}
		addQuery(s, start.Add(time.Duration(i)*time.Minute), "10.0.0.9", fmt.Sprintf("host%d.corp.example", i%4), "A", rcode)
	}

	sum := newTestDetector(t).Analyze(s)
	require.Len(t, sum.Suspicious, 1)
	f := sum.Suspicious[0]
	assert.Equal(t, PatternNXDomain, f.Pattern)
	assert.Equal(t, PatternNXDomain, f.Kind())
	assert.Equal(t, "10.0.0.9", f.SrcIP)
	assert.InDelta(t, 0.8, f.Ratio, 1e-9)
	assert.InDelta(t, 76.0, f.Score(), 1e-9)
	assert.Len(t, f.Examples, 4)
	assert.Equal(t, f.Examples, f.RelatedDomains())
}

func TestSuspiciousUnusualTypes(t *testing.T) {
	s := store.New()
	for i := 0; i < 12; i++ {
		qtype := "A"
		switch i % 4 {
		case 0:
			qtype = "NULL"
		case 1:
			qtype = "any"
		}
		addQuery(s, start.Add(time.Duration(i)*time.Minute), "10.0.0.9", "host.corp.example", qtype, "NOERROR")
	}

	sum := newTestDetector(t).Analyze(s)
	require.Len(t, sum.Suspicious, 1)
	f := sum.Suspicious[0]
	assert.Equal(t, PatternUnusualType, f.Pattern)
	assert.Equal(t, []string{"ANY", "NULL"}, f.QueryTypes)
	assert.InDelta(t, 0.5, f.Ratio, 1e-9)
}

func TestSuspiciousQueryRate(t *testing.T) {
	s := store.New()
	for i := 0; i < 70; i++ {
		addQuery(s, start.Add(time.Duration(i)*500*time.Millisecond), "10.0.0.9", "api.service.example", "A", "NOERROR")
	}

	sum := newTestDetector(t).Analyze(s)
	require.Len(t, sum.Suspicious, 1)
	f := sum.Suspicious[0]
	assert.Equal(t, PatternQueryRate, f.Pattern)
	assert.Equal(t, "service.example", f.Domain())
	assert.Equal(t, 70, f.PeakPerMinute)
	assert.Equal(t, 70, f.QueryCount)

	// exactly at the threshold is not excessive
	s = store.New()
	for i := 0; i < 60; i++ {
		addQuery(s, start.Add(time.Duration(i)*time.Second), "10.0.0.9", "api.service.example", "A", "NOERROR")
	}
	assert.Empty(t, newTestDetector(t).Analyze(s).Suspicious)
}

func TestNeverIncludeDomain(t *testing.T) {
	conf := DefaultConfig()
	conf.NeverInclude = []string{"*.tunnel.example"}
	d, err := NewDetector(conf, nil)
	require.NoError(t, err)

	s := store.New()
	addTunnel(s, "192.0.2.20", "tunnel.example", 15, 20*time.Second)
	sum := d.Analyze(s)
	assert.Empty(t, sum.Tunneling)
	assert.Equal(t, 0, sum.QueriesAnalyzed)
}

func TestSummaryTopListsAndDeterminism(t *testing.T) {
	s := store.New()
	for i := 0; i < 12; i++ {
		addTunnel(s, fmt.Sprintf("192.0.2.%d", 100+i), "tunnel.example", 15+i, 10*time.Second)
	}
	d := newTestDetector(t)
	sum := d.Analyze(s)

	require.Len(t, sum.Tunneling, 12)
	assert.Len(t, sum.TopTunneling, topCount)
	assert.Equal(t, sum.Tunneling[:topCount], sum.TopTunneling)
	for i := 1; i < len(sum.Tunneling); i++ {
		assert.GreaterOrEqual(t, sum.Tunneling[i-1].Score(), sum.Tunneling[i].Score())
	}
	assert.Equal(t, sum.Count(), len(sum.All()))

	assert.Equal(t, sum, d.Analyze(s))
}

func TestEmptyStore(t *testing.T) {
	sum := newTestDetector(t).Analyze(store.New())
	assert.Equal(t, 0, sum.Count())
	assert.Empty(t, sum.All())
	assert.True(t, sum.Window.Start.IsZero())
}

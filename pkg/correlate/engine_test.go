package correlate

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/pkg/store"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomLabel returns a high entropy label whose last four characters
// encode seed
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

// addBeacon inserts count connections one minute apart
func addBeacon(s *store.Store, src, dst string, count int) {
	for i := 0; i < count; i++ {
		s.InsertConnection(data.Connection{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			SrcIP:     src,
			SrcPort:   40000 + i,
			DstIP:     dst,
			DstPort:   443,
			Proto:     "tcp",
			Service:   "ssl",
			Duration:  0.4,
			OrigBytes: 512,
			RespBytes: 2048,
		})
	}
}

// addTunnel inserts count queries to distinct high entropy subdomains of domain
func addTunnel(s *store.Store, src, domain string, count int) {
	for i := 0; i < count; i++ {
		s.InsertDNSQuery(data.DNSQuery{
			Timestamp: start.Add(time.Duration(i) * 20 * time.Second),
			SrcIP:     src,
			DstIP:     "10.0.0.53",
			DstPort:   53,
			Query:     randomLabel(i, 30) + "." + domain,
			QType:     "A",
			RCode:     "NOERROR",
		})
	}
}

func trojanAlert(src, dst string) data.Alert {
	return data.Alert{
		Timestamp:   start.Add(30 * time.Minute),
		SrcIP:       src,
		SrcPort:     51514,
		DstIP:       dst,
		DstPort:     443,
		Proto:       "TCP",
		AppProto:    "tls",
		Signature:   "ET MALWARE Observed C2 check-in",
		SignatureID: 2019000,
		Category:    "A Network Trojan was detected",
		Severity:    1,
	}
}

func quietLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newTestEngine(t *testing.T, conf Config) *Engine {
	e, err := NewEngine(conf, quietLogger())
	require.NoError(t, err)
	return e
}

// recorder captures everything the engine reports
type recorder struct {
	mu        sync.Mutex
	records   store.Counts
	detectors map[finding.Detector]error
	findings  map[finding.Detector]int
	profiles  int
}

func newRecorder() *recorder {
	return &recorder{detectors: make(map[finding.Detector]error), findings: make(map[finding.Detector]int)}
}

func (r *recorder) ObserveRecords(c store.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = c
}

func (r *recorder) ObserveDetector(d finding.Detector, _ time.Duration, findings int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[d] = err
	r.findings[d] = findings
}

func (r *recorder) ObserveProfiles(p Profiles) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = len(p)
}

func TestScenarioBeaconAndTunneling(t *testing.T) {
	s := store.New()
	addBeacon(s, "192.0.2.10", "203.0.113.5", 11)
	addTunnel(s, "192.0.2.10", "tunnel.example", 15)

	a, err := newTestEngine(t, DefaultConfig()).Analyze(s)
	require.NoError(t, err)
	require.Len(t, a.Beacons, 1)
	require.Len(t, a.DNS.Tunneling, 1)

	p, err := a.Profiles.Get("192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, 1, p.BeaconCount)
	assert.Equal(t, 1, p.DNSThreatCount)
	assert.Greater(t, p.Score, a.Beacons[0].Score()/100)
	assert.Greater(t, p.Score, a.DNS.Tunneling[0].Score()/100)
	assert.LessOrEqual(t, p.Score, 1.0)
	assert.Equal(t, finding.LevelFromScore(p.Score), p.ThreatLevel)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.Contains(t, p.Reasons, "beaconing and DNS tunneling from the same host (x1.15)")
	assert.Contains(t, p.Reasons, "2 detectors agree (x1.1)")

	assert.Equal(t, []string{"203.0.113.5"}, p.RelatedIPs)
	assert.Equal(t, []string{"tunnel.example"}, p.RelatedDomains)
	assert.Equal(t, []finding.Role{finding.RoleSource}, p.Roles)
	assert.Equal(t, start, p.FirstSeen)
	assert.Equal(t, start.Add(10*time.Minute), p.LastSeen)

	require.Len(t, p.Timeline, 2)
	assert.Equal(t, finding.DetectorBeacon, p.Timeline[0].Detector)
	assert.Equal(t, finding.DetectorDNS, p.Timeline[1].Detector)

	assert.Contains(t, p.Narrative, "192.0.2.10 is rated "+string(p.ThreatLevel))
	assert.Contains(t, p.Narrative, "1 beacon, 1 dns findings")
	assert.Contains(t, p.Narrative, "Protocol Tunneling (T1572)")
}

func TestTechniqueUnion(t *testing.T) {
	s := store.New()
	addBeacon(s, "192.0.2.10", "203.0.113.5", 11)
	addTunnel(s, "192.0.2.10", "tunnel.example", 15)
	s.InsertAlert(trojanAlert("192.0.2.10", "203.0.113.5"))

	profiles, err := newTestEngine(t, DefaultConfig()).AnalyzeAll(s)
	require.NoError(t, err)

	for _, p := range profiles {
		for _, ev := range p.Evidence {
			assert.Subset(t, p.Techniques, ev.Techniques(), "profile %s", p.IP)
		}
		assert.Len(t, p.TechniqueEvidence, len(p.Techniques))
	}

	p := profiles["192.0.2.10"]
	te := p.TechniqueEvidence[mitre.ApplicationLayerProtocol]
	require.NotNil(t, te)
	assert.Equal(t, "Application Layer Protocol", te.Name)
	assert.Equal(t, []string{mitre.TacticCommandAndControl}, te.Tactics)
	assert.Equal(t, 2, te.DetectionCount)
	assert.Equal(t, []string{"alert", "beacon"}, te.Behaviors)
	assert.Equal(t, []finding.Detector{finding.DetectorBeacon, finding.DetectorAlert}, te.Detectors)
	assert.Equal(t, start, te.FirstDetected)
	assert.Equal(t, start.Add(30*time.Minute), te.LastDetected)
}

func TestAlertFoldsIntoBothHosts(t *testing.T) {
	s := store.New()
	s.InsertAlert(trojanAlert("10.0.0.5", "203.0.113.9"))

	profiles, err := newTestEngine(t, DefaultConfig()).AnalyzeAll(s)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	attacker := profiles["10.0.0.5"]
	victim := profiles["203.0.113.9"]
	assert.Equal(t, []finding.Role{finding.RoleAttacker}, attacker.Roles)
	assert.Equal(t, []finding.Role{finding.RoleVictim}, victim.Roles)
	assert.Equal(t, []string{"203.0.113.9"}, attacker.RelatedIPs)
	assert.Equal(t, []string{"10.0.0.5"}, victim.RelatedIPs)

	for _, p := range []*Profile{attacker, victim} {
		assert.Equal(t, 1, p.AlertCount)
		assert.InDelta(t, 0.8325, p.Score, 1e-9)
		assert.Equal(t, finding.LevelCritical, p.ThreatLevel)
		assert.InDelta(t, 0.65, p.Confidence, 1e-9)
		assert.Equal(t, []string{mitre.ApplicationLayerProtocol}, p.Techniques)
	}
}

func TestBeaconCluster(t *testing.T) {
	s := store.New()
	addBeacon(s, "10.0.0.21", "198.51.100.99", 11)
	addBeacon(s, "10.0.0.22", "198.51.100.99", 11)
	addBeacon(s, "10.0.0.23", "198.51.100.50", 11)

	a, err := newTestEngine(t, DefaultConfig()).Analyze(s)
	require.NoError(t, err)
	require.Len(t, a.Beacons, 3)
	single := a.Beacons[0].Score() / 100
	boosted := math.Min(1, single*1.15)

	p := a.Profiles["10.0.0.21"]
	assert.InDelta(t, boosted, p.Score, 1e-9)
	assert.Contains(t, p.Reasons, "one of 2 hosts beaconing to 198.51.100.99 (x1.15)")
	assert.Equal(t, []string{"10.0.0.22", "198.51.100.99"}, p.RelatedIPs)
	assert.InDelta(t, boosted, a.Profiles["10.0.0.22"].Score, 1e-9)

	lone := a.Profiles["10.0.0.23"]
	assert.InDelta(t, single, lone.Score, 1e-9)
	assert.Equal(t, []string{"198.51.100.50"}, lone.RelatedIPs)

	conf := DefaultConfig()
	conf.MinClusterHosts = 3
	profiles, err := newTestEngine(t, conf).AnalyzeAll(s)
	require.NoError(t, err)
	assert.InDelta(t, single, profiles["10.0.0.21"].Score, 1e-9)
}

func TestEmptyStore(t *testing.T) {
	profiles, err := newTestEngine(t, DefaultConfig()).AnalyzeAll(store.New())
	require.NoError(t, err)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
}

func TestNilStore(t *testing.T) {
	_, err := newTestEngine(t, DefaultConfig()).Analyze(nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestDeterministic(t *testing.T) {
	s := store.New()
	addBeacon(s, "192.0.2.10", "203.0.113.5", 11)
	addBeacon(s, "10.0.0.21", "203.0.113.5", 11)
	addTunnel(s, "192.0.2.10", "tunnel.example", 15)
	s.InsertAlert(trojanAlert("10.0.0.5", "203.0.113.9"))

	e := newTestEngine(t, DefaultConfig())
	first, err := e.Analyze(s)
	require.NoError(t, err)
	second, err := e.Analyze(s)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Profiles, second.Profiles)
	assert.Equal(t, first.Beacons, second.Beacons)
	assert.Equal(t, first.DNS, second.DNS)
	assert.Equal(t, first.Alerts, second.Alerts)
}

func TestDetectorFailureIsolated(t *testing.T) {
	s := store.New()
	addBeacon(s, "192.0.2.10", "203.0.113.5", 11)
	s.InsertAlert(trojanAlert("10.0.0.5", "203.0.113.9"))

	e := newTestEngine(t, DefaultConfig())
	for i := range e.stages {
		if e.stages[i].detector == finding.DetectorBeacon {
			e.stages[i].run = func(*store.Store, *Analysis) int { panic("index out of range") }
		}
	}
	rec := newRecorder()
	e.SetRecorder(rec)

	a, err := e.Analyze(s)
	require.NoError(t, err)
	require.Len(t, a.Failures, 1)
	assert.Equal(t, finding.DetectorBeacon, a.Failures[0].Detector)
	assert.EqualError(t, a.Failures[0], "beacon detector failed: panic: index out of range")

	assert.Nil(t, a.Beacons)
	assert.NotContains(t, a.Profiles, "192.0.2.10")
	assert.Contains(t, a.Profiles, "10.0.0.5")
	assert.Contains(t, a.Profiles, "203.0.113.9")

	var detErr *DetectorError
	assert.True(t, errors.As(rec.detectors[finding.DetectorBeacon], &detErr))
	assert.NoError(t, rec.detectors[finding.DetectorAlert])
	assert.Equal(t, 1, rec.findings[finding.DetectorAlert])
	assert.Equal(t, 2, rec.profiles)
	assert.Equal(t, 11, rec.records.Connections)
}

func TestDisabledDetector(t *testing.T) {
	s := store.New()
	s.InsertAlert(trojanAlert("10.0.0.5", "203.0.113.9"))

	conf := DefaultConfig()
	conf.Disabled = map[finding.Detector]bool{finding.DetectorAlert: true}
	a, err := newTestEngine(t, conf).Analyze(s)
	require.NoError(t, err)
	assert.Empty(t, a.Profiles)
	assert.NotNil(t, a.Alerts)
	assert.Empty(t, a.Alerts.Findings)
}

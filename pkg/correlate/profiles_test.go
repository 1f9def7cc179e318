package correlate

import (
	"errors"
	"testing"

	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse(t *testing.T) {
	cases := []struct {
		name   string
		scores map[finding.Detector]float64
		want   float64
	}{
		{"none", map[finding.Detector]float64{}, 0},
		{"single", map[finding.Detector]float64{finding.DetectorBeacon: 80}, 0.8},
		{"two", map[finding.Detector]float64{finding.DetectorBeacon: 80, finding.DetectorDNS: 40}, (0.56 + 0.18) * 1.1},
		{"three", map[finding.Detector]float64{
			finding.DetectorBeacon: 80, finding.DetectorDNS: 40, finding.DetectorAlert: 20,
		}, (0.56 + 0.14) * 1.2},
		{"clamped", map[finding.Detector]float64{
			finding.DetectorBeacon: 100, finding.DetectorDNS: 100,
			finding.DetectorAlert: 100, finding.DetectorLongConn: 100,
		}, 1},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, fuse(c.scores), 1e-9, c.name)
	}
}

func TestFuseMonotonic(t *testing.T) {
	scores := map[finding.Detector]float64{finding.DetectorBeacon: 50, finding.DetectorDNS: 30}
	prev := fuse(scores)
	for s := 31.0; s <= 100; s++ {
		scores[finding.DetectorDNS] = s
		next := fuse(scores)
		assert.GreaterOrEqual(t, next, prev)
		prev = next
	}
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.65, confidence(1), 1e-9)
	assert.InDelta(t, 0.8, confidence(2), 1e-9)
	assert.InDelta(t, 0.95, confidence(3), 1e-9)
	assert.Equal(t, 1.0, confidence(4))
}

func alertProfiles(t *testing.T) Profiles {
	s := store.New()
	s.InsertAlert(trojanAlert("10.0.0.5", "203.0.113.9"))
	addBeacon(s, "10.0.0.21", "198.51.100.50", 11)

	profiles, err := newTestEngine(t, DefaultConfig()).AnalyzeAll(s)
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	return profiles
}

func TestProfileQueries(t *testing.T) {
	profiles := alertProfiles(t)

	_, err := profiles.Get("192.0.2.200")
	assert.True(t, errors.Is(err, ErrProfileNotFound))

	p, err := profiles.Get("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", p.IP)

	top := profiles.Top(2)
	require.Len(t, top, 2)
	// the beacon scores 88.8, both alert profiles 83.25
	assert.Equal(t, "10.0.0.21", top[0].IP)
	assert.Equal(t, "10.0.0.5", top[1].IP)
	assert.Len(t, profiles.Top(0), 3)
	assert.Len(t, profiles.Top(10), 3)

	sorted := profiles.Sorted()
	for i := 1; i < len(sorted); i++ {
		assert.GreaterOrEqual(t, sorted[i-1].Score, sorted[i].Score)
	}

	assert.Len(t, profiles.AtLeast(finding.LevelCritical), 3)
	assert.Len(t, profiles.AtLeast(finding.LevelInfo), 3)
}

func TestOverview(t *testing.T) {
	o := alertProfiles(t).Overview()

	assert.Equal(t, 3, o.Hosts)
	assert.Equal(t, 3, o.Levels[finding.LevelCritical])
	assert.Equal(t, 3, o.Techniques[mitre.ApplicationLayerProtocol])
	assert.Equal(t, []string{"10.0.0.21", "10.0.0.5", "203.0.113.9"}, o.TechniqueHosts[mitre.ApplicationLayerProtocol])
	assert.Equal(t, []string{"10.0.0.21"}, o.TechniqueHosts[mitre.WebProtocols])
	assert.Equal(t, o.Techniques[mitre.ApplicationLayerProtocol]+
		o.Techniques[mitre.WebProtocols]+
		o.Techniques[mitre.EncryptedChannel], o.Tactics[mitre.TacticCommandAndControl])
}

package commands

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestMain(m *testing.M) {
	// exit errors are returned to the tests instead of ending the process
	cli.OsExiter = func(int) {}
	cli.ErrWriter = io.Discard
	os.Exit(m.Run())
}

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// telemetry returns a beacon of 11 connections one minute apart and a
// trojan alert on the same pair
func telemetry() string {
	var lines []string
	for n := 0; n < 11; n++ {
		lines = append(lines, fmt.Sprintf(
			`{"conn":{"ts":"%s","src":"10.0.0.21","src_port":%d,"dst":"198.51.100.99","dst_port":443,"proto":"tcp","service":"ssl","duration":0.4,"orig_bytes":512,"resp_bytes":2048}}`,
			start.Add(time.Duration(n)*time.Minute).Format(time.RFC3339), 40000+n,
		))
	}
	lines = append(lines,
		fmt.Sprintf(
			`{"alert":{"ts":"%s","src":"10.0.0.21","src_port":51514,"dst":"198.51.100.99","dst_port":443,"proto":"TCP","app_proto":"tls","signature":"ET MALWARE Observed C2 check-in","signature_id":2019000,"category":"A Network Trojan was detected","severity":1}}`,
			start.Add(30*time.Minute).Format(time.RFC3339),
		),
		`not json`,
	)
	return strings.Join(lines, "\n") + "\n"
}

type fixture struct {
	config string
	input  string
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	fx := fixture{
		config: filepath.Join(dir, "config.yaml"),
		input:  filepath.Join(dir, "telemetry.jsonl"),
	}
	require.NoError(t, os.WriteFile(fx.config, []byte("LogConfig:\n  LogLevel: 0\n"), 0644))
	require.NoError(t, os.WriteFile(fx.input, []byte(telemetry()), 0644))
	return fx
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := cli.NewApp()
	app.Name = "threatfuse"
	app.Commands = Commands()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"threatfuse"}, args...))
	return out.String(), err
}

func TestShowProfilesCsv(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-profiles", "--config", fx.config, fx.input)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Score,Host,Threat Level"))
	assert.Contains(t, lines[1], ",10.0.0.21,critical,")
	assert.Contains(t, lines[2], ",198.51.100.99,")
}

func TestShowProfilesMinLevel(t *testing.T) {
	fx := newFixture(t)
	_, err := runApp(t, "show-profiles", "--config", fx.config, "--min-level", "severe", fx.input)
	assert.Error(t, err)

	out, err := runApp(t, "show-profiles", "--config", fx.config, "--limit", "1", fx.input)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestShowProfileJSON(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-profile", "--config", fx.config, "--ip", "10.0.0.21", "--json", fx.input)
	require.NoError(t, err)

	var profile struct {
		IP         string   `json:"ip"`
		Techniques []string `json:"techniques"`
		Narrative  string   `json:"narrative"`
	}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &profile))
	assert.Equal(t, "10.0.0.21", profile.IP)
	assert.Contains(t, profile.Techniques, "T1071")
	assert.True(t, strings.HasPrefix(profile.Narrative, "10.0.0.21 is rated critical"))
}

func TestShowProfileTimeline(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-profile", "--config", fx.config, "--ip", "10.0.0.21", fx.input)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Host,Time,Detector,Kind,Score,Role,Description", lines[0])
	assert.Contains(t, lines[1], "10.0.0.21,2024-03-01T08:00:00Z,beacon,beacon,")
	assert.Contains(t, lines[2], "10.0.0.21,2024-03-01T08:30:00Z,alert,alert,")
}

func TestShowProfileErrors(t *testing.T) {
	fx := newFixture(t)
	_, err := runApp(t, "show-profile", "--config", fx.config, fx.input)
	assert.Error(t, err)

	_, err = runApp(t, "show-profile", "--config", fx.config, "--ip", "10.9.9.9", fx.input)
	assert.Error(t, err)
}

func TestShowBeaconsHuman(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-beacons", "--config", fx.config, "-H", fx.input)
	require.NoError(t, err)
	assert.Contains(t, out, "198.51.100.99")
	assert.Contains(t, out, "443:tcp:ssl")
	assert.Contains(t, out, "CONNECTIONS")
}

func TestShowBeaconDetailCsv(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-beacon-detail", "--config", fx.config,
		"--src", "10.0.0.21", "--dst", "198.51.100.99", fx.input)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, "10.0.0.21,198.51.100.99,443:tcp:ssl,2024-03-01T08:00:00Z,", lines[1])
	assert.Equal(t, "10.0.0.21,198.51.100.99,443:tcp:ssl,2024-03-01T08:01:00Z,60.00", lines[2])

	_, err = runApp(t, "show-beacon-detail", "--config", fx.config, "--src", "10.0.0.21", fx.input)
	assert.Error(t, err)
}

func TestShowAlerts(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-alerts", "--config", fx.config, fx.input)
	require.NoError(t, err)
	assert.Contains(t, out, "ET MALWARE Observed C2 check-in")
	assert.Contains(t, out, "critical")

	// a single alert forms no pattern
	_, err = runApp(t, "show-alerts", "--config", fx.config, "--patterns", fx.input)
	assert.Error(t, err)
}

func TestShowTechniques(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "show-techniques", "--config", fx.config, fx.input)
	require.NoError(t, err)
	assert.Contains(t, out, "T1071,Application Layer Protocol,")
	assert.Contains(t, out, "10.0.0.21")
}

func TestAnalyzeJSON(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "analyze", "--config", fx.config, "--json", fx.input)
	require.NoError(t, err)

	var analysis struct {
		RunID   string `json:"run_id"`
		Records struct {
			Connections int `json:"connections"`
			Alerts      int `json:"alerts"`
		} `json:"records"`
		Profiles map[string]struct {
			ThreatLevel string `json:"threat_level"`
		} `json:"profiles"`
	}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &analysis))
	assert.NotEmpty(t, analysis.RunID)
	assert.Equal(t, 11, analysis.Records.Connections)
	assert.Equal(t, 1, analysis.Records.Alerts)
	assert.Equal(t, "critical", analysis.Profiles["10.0.0.21"].ThreatLevel)
}

func TestAnalyzeWritesMetrics(t *testing.T) {
	fx := newFixture(t)
	textfile := filepath.Join(t.TempDir(), "threatfuse.prom")
	conf := fmt.Sprintf("LogConfig:\n  LogLevel: 0\nMetrics:\n  Enabled: true\n  TextfilePath: %s\n", textfile)
	require.NoError(t, os.WriteFile(fx.config, []byte(conf), 0644))

	out, err := runApp(t, "analyze", "--config", fx.config, "--top", "1", fx.input)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "threatfuse_analysis_runs_total 1")
	assert.Contains(t, string(metrics), `threatfuse_records_analyzed{kind="conn"} 11`)
}

func TestGzipInput(t *testing.T) {
	fx := newFixture(t)
	compressed := fx.input + ".gz"

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(telemetry()))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(compressed, buf.Bytes(), 0644))

	out, err := runApp(t, "show-long-connections", "--config", fx.config, compressed)
	// the fixture holds no long connections
	assert.Error(t, err)
	assert.Empty(t, out)

	out, err = runApp(t, "show-beacons", "--config", fx.config, compressed)
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.21,198.51.100.99,443:tcp:ssl,11,")
}

func TestInputErrors(t *testing.T) {
	fx := newFixture(t)
	_, err := runApp(t, "show-beacons", "--config", fx.config)
	assert.Error(t, err)

	_, err = runApp(t, "show-beacons", "--config", fx.config, filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestCheckInputSize(t *testing.T) {
	assert.NoError(t, checkInputSize(1<<30, 0))
	assert.NoError(t, checkInputSize(1<<30, 4<<30))
	assert.NoError(t, checkInputSize(2<<30, 4<<30))
	assert.Error(t, checkInputSize(3<<30, 4<<30))
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 5, limit(5, 10, false))
	assert.Equal(t, 10, limit(50, 10, false))
	assert.Equal(t, 50, limit(50, 10, true))
	assert.Equal(t, 50, limit(50, 0, false))
}

func TestTestConfig(t *testing.T) {
	fx := newFixture(t)
	out, err := runApp(t, "test-config", "--config", fx.config)
	require.NoError(t, err)
	assert.Contains(t, out, "# "+fx.config)
	assert.Contains(t, out, "LogConfig:")
	assert.Contains(t, out, "LogLevel: 0")
}

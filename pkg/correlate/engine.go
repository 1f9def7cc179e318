package correlate

import (
	"fmt"
	"sync"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/alertscore"
	"github.com/activecm/threatfuse/pkg/beacon"
	"github.com/activecm/threatfuse/pkg/dnsthreat"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/longconn"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Config bundles the detector configurations with the correlation settings
type Config struct {
	Beacon    beacon.Config
	Allowlist beacon.Allowlist
	DNS       dnsthreat.Config
	Alerts    alertscore.Config
	LongConn  longconn.Config

	// Disabled detectors are never run
	Disabled map[finding.Detector]bool

	// BoostFactor multiplies the score of hosts caught by a cross detector
	// or cross host correlation
	BoostFactor float64
	// MinClusterHosts is the number of sources beaconing to one destination
	// that form a cluster
	MinClusterHosts int
}

// DefaultConfig returns the stock configuration of every detector
func DefaultConfig() Config {
	return Config{
		Beacon:          beacon.DefaultConfig(),
		Allowlist:       beacon.NewDefaultAllowlist(nil),
		DNS:             dnsthreat.DefaultConfig(),
		Alerts:          alertscore.DefaultConfig(),
		LongConn:        longconn.DefaultConfig(),
		BoostFactor:     1.15,
		MinClusterHosts: 2,
	}
}

// ConfigFrom reads every analysis section of the static config
func ConfigFrom(conf *config.Config) Config {
	disabled := make(map[finding.Detector]bool)
	disabled[finding.DetectorBeacon] = !conf.S.Beacon.Enabled
	disabled[finding.DetectorDNS] = !conf.S.DNS.Enabled
	disabled[finding.DetectorAlert] = !conf.S.Alerts.Enabled
	disabled[finding.DetectorLongConn] = !conf.S.LongConnections.Enabled

	return Config{
		Beacon:          beacon.ConfigFrom(conf),
		Allowlist:       beacon.NewDefaultAllowlist(conf.R.Filtering.AllowlistedNets),
		DNS:             dnsthreat.ConfigFrom(conf),
		Alerts:          alertscore.ConfigFrom(conf),
		LongConn:        longconn.ConfigFrom(conf),
		Disabled:        disabled,
		BoostFactor:     conf.S.Correlation.BoostFactor,
		MinClusterHosts: conf.S.Correlation.MinClusterHosts,
	}
}

// stage runs one detector and stores its output in the analysis. Stages
// write disjoint fields so they may run concurrently.
type stage struct {
	detector finding.Detector
	run      func(s *store.Store, a *Analysis) int
}

// Engine runs the detectors and correlates their findings
type Engine struct {
	conf     Config
	stages   []stage
	recorder Recorder
	log      *log.Logger
}

// NewEngine creates the detectors named in conf
func NewEngine(conf Config, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e := &Engine{conf: conf, log: logger}

	if !conf.Disabled[finding.DetectorBeacon] {
		d := beacon.NewDetector(conf.Beacon, conf.Allowlist, logger)
		e.stages = append(e.stages, stage{finding.DetectorBeacon, func(s *store.Store, a *Analysis) int {
			a.Beacons = d.Analyze(s)
			return len(a.Beacons)
		}})
	}
	if !conf.Disabled[finding.DetectorDNS] {
		d, err := dnsthreat.NewDetector(conf.DNS, logger)
		if err != nil {
			return nil, fmt.Errorf("could not create DNS detector: %w", err)
		}
		e.stages = append(e.stages, stage{finding.DetectorDNS, func(s *store.Store, a *Analysis) int {
			a.DNS = d.Analyze(s)
			return a.DNS.Count()
		}})
	}
	if !conf.Disabled[finding.DetectorAlert] {
		sc := alertscore.NewScorer(conf.Alerts, logger)
		e.stages = append(e.stages, stage{finding.DetectorAlert, func(s *store.Store, a *Analysis) int {
			a.Alerts = sc.Analyze(s)
			return len(a.Alerts.Findings) + len(a.Alerts.Patterns)
		}})
	}
	if !conf.Disabled[finding.DetectorLongConn] {
		d := longconn.NewDetector(conf.LongConn, logger)
		e.stages = append(e.stages, stage{finding.DetectorLongConn, func(s *store.Store, a *Analysis) int {
			a.LongConns = d.Analyze(s)
			return len(a.LongConns)
		}})
	}
	return e, nil
}

// SetRecorder attaches r to every following analysis. Recorder methods
// are called from the detector goroutines.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Analyze runs every enabled detector over s concurrently and builds the
// host profiles once all of them finished. A detector that panics is
// logged, listed in Failures and contributes nothing. s must not be
// modified until Analyze returns.
func (e *Engine) Analyze(s *store.Store) (*Analysis, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	a := &Analysis{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Records: s.Counts(),
	}
	if e.recorder != nil {
		e.recorder.ObserveRecords(a.Records)
	}

	failures := make([]*DetectorError, len(e.stages))
	var wg sync.WaitGroup
	for i := range e.stages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			failures[i] = e.run(e.stages[i], s, a)
		}(i)
	}
	wg.Wait()

	for _, failure := range failures {
		if failure != nil {
			a.Failures = append(a.Failures, failure)
			discard(a, failure.Detector)
		}
	}
	if a.DNS == nil {
		a.DNS = &dnsthreat.Summary{}
	}
	if a.Alerts == nil {
		a.Alerts = &alertscore.Report{}
	}

	a.Profiles = e.correlate(a)
	a.Elapsed = time.Since(a.Started)
	if e.recorder != nil {
		e.recorder.ObserveProfiles(a.Profiles)
	}

	e.log.WithFields(log.Fields{
		"run_id":   a.RunID,
		"profiles": len(a.Profiles),
		"failures": len(a.Failures),
		"elapsed":  a.Elapsed,
	}).Info("correlation complete")
	return a, nil
}

// AnalyzeAll runs a full analysis and returns only the profiles
func (e *Engine) AnalyzeAll(s *store.Store) (Profiles, error) {
	a, err := e.Analyze(s)
	if err != nil {
		return nil, err
	}
	return a.Profiles, nil
}

// run executes a single stage, turning a panic into a DetectorError
func (e *Engine) run(st stage, s *store.Store, a *Analysis) (failure *DetectorError) {
	begin := time.Now()
	count := 0
	defer func() {
		if r := recover(); r != nil {
			failure = &DetectorError{Detector: st.detector, Err: fmt.Errorf("panic: %v", r)}
			e.log.WithFields(log.Fields{
				"detector": st.detector,
				"error":    r,
			}).Error("detector failed, continuing without its findings")
		}
		if e.recorder != nil {
			var err error
			if failure != nil {
				err = failure
			}
			e.recorder.ObserveDetector(st.detector, time.Since(begin), count, err)
		}
	}()

	count = st.run(s, a)
	e.log.WithFields(log.Fields{
		"detector": st.detector,
		"findings": count,
		"elapsed":  time.Since(begin),
	}).Debug("detector finished")
	return nil
}

// discard empties the output of a failed detector
func discard(a *Analysis, d finding.Detector) {
	switch d {
	case finding.DetectorBeacon:
		a.Beacons = nil
	case finding.DetectorDNS:
		a.DNS = nil
	case finding.DetectorAlert:
		a.Alerts = nil
	case finding.DetectorLongConn:
		a.LongConns = nil
	}
}

package commands

import (
	"io"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/activecm/threatfuse/resources"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

type (
	// recorders fans engine observations out to several recorders
	recorders []correlate.Recorder

	// detectorProgress draws one step per finished detector
	detectorProgress struct {
		p   *mpb.Progress
		bar *mpb.Bar
	}
)

func (rs recorders) ObserveRecords(counts store.Counts) {
	for _, r := range rs {
		r.ObserveRecords(counts)
	}
}

func (rs recorders) ObserveDetector(d finding.Detector, elapsed time.Duration, findings int, err error) {
	for _, r := range rs {
		r.ObserveDetector(d, elapsed, findings, err)
	}
}

func (rs recorders) ObserveProfiles(profiles correlate.Profiles) {
	for _, r := range rs {
		r.ObserveProfiles(profiles)
	}
}

func newDetectorProgress(w io.Writer, detectors int) *detectorProgress {
	p := mpb.New(mpb.WithWidth(20), mpb.WithOutput(w))
	bar := p.AddBar(int64(detectors),
		mpb.PrependDecorators(
			decor.Name("\t[-] Running detectors:", decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	return &detectorProgress{p: p, bar: bar}
}

func (dp *detectorProgress) ObserveRecords(store.Counts) {}

func (dp *detectorProgress) ObserveDetector(_ finding.Detector, elapsed time.Duration, _ int, _ error) {
	dp.bar.IncrBy(1, elapsed)
}

func (dp *detectorProgress) ObserveProfiles(correlate.Profiles) {}

func (dp *detectorProgress) wait() {
	dp.p.Wait()
}

// enabledDetectors counts the detectors the engine will run
func enabledDetectors(conf *config.Config) int {
	n := 0
	for _, enabled := range []bool{
		conf.S.Beacon.Enabled,
		conf.S.DNS.Enabled,
		conf.S.Alerts.Enabled,
		conf.S.LongConnections.Enabled,
	} {
		if enabled {
			n++
		}
	}
	return n
}

// runEngine correlates every enabled detector over s. Progress is drawn on
// progress when it is non-nil.
func runEngine(res *resources.Resources, s *store.Store, progress io.Writer, extra ...correlate.Recorder) (*correlate.Analysis, error) {
	engine, err := correlate.NewEngine(correlate.ConfigFrom(res.Config), res.Log)
	if err != nil {
		return nil, err
	}

	rs := recorders(extra)
	var dp *detectorProgress
	if progress != nil && enabledDetectors(res.Config) > 0 {
		dp = newDetectorProgress(progress, enabledDetectors(res.Config))
		rs = append(rs, dp)
	}
	if len(rs) > 0 {
		engine.SetRecorder(rs)
	}

	analysis, err := engine.Analyze(s)
	if dp != nil {
		dp.wait()
	}
	return analysis, err
}

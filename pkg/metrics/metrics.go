// Package metrics exposes the progress of analysis runs as prometheus
// metrics.
package metrics

import (
	"time"

	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "threatfuse"

var levels = []finding.Level{
	finding.LevelInfo, finding.LevelLow, finding.LevelMedium, finding.LevelHigh, finding.LevelCritical,
}

// Metrics holds the prometheus metrics of the analysis engine. It
// implements correlate.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	Runs             prometheus.Counter
	Records          *prometheus.GaugeVec
	DetectorDuration *prometheus.HistogramVec
	Findings         *prometheus.GaugeVec
	DetectorFailures *prometheus.CounterVec
	Profiles         *prometheus.GaugeVec
	Published        prometheus.Counter
	PublishErrors    prometheus.Counter
}

// New creates the metrics on their own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Total number of analysis runs",
		}),
		Records: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_analyzed",
			Help:      "Records in the store during the last run",
		}, []string{"kind"}),
		DetectorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detector_duration_seconds",
			Help:      "Time spent in each detector",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"detector"}),
		Findings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "findings",
			Help:      "Findings produced by each detector during the last run",
		}, []string{"detector"}),
		DetectorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Total number of detector failures",
		}, []string{"detector"}),
		Profiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_profiles",
			Help:      "Host profiles by threat level during the last run",
		}, []string{"level"}),
		Published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_published_total",
			Help:      "Total number of profiles published",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of failed profile publications",
		}),
	}
}

// Registry returns the registry holding every metric
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRecords implements correlate.Recorder and marks the start of a run
func (m *Metrics) ObserveRecords(counts store.Counts) {
	m.Runs.Inc()
	m.Records.WithLabelValues("conn").Set(float64(counts.Connections))
	m.Records.WithLabelValues("dns").Set(float64(counts.DNSQueries))
	m.Records.WithLabelValues("alert").Set(float64(counts.Alerts))
}

// ObserveDetector implements correlate.Recorder
func (m *Metrics) ObserveDetector(d finding.Detector, elapsed time.Duration, findings int, err error) {
	m.DetectorDuration.WithLabelValues(string(d)).Observe(elapsed.Seconds())
	m.Findings.WithLabelValues(string(d)).Set(float64(findings))
	if err != nil {
		m.DetectorFailures.WithLabelValues(string(d)).Inc()
	}
}

// ObserveProfiles implements correlate.Recorder
func (m *Metrics) ObserveProfiles(profiles correlate.Profiles) {
	counts := make(map[finding.Level]int)
	for _, p := range profiles {
		counts[p.ThreatLevel]++
	}
	for _, level := range levels {
		m.Profiles.WithLabelValues(string(level)).Set(float64(counts[level]))
	}
}

// ObservePublished counts one publication attempt
func (m *Metrics) ObservePublished(err error) {
	if err != nil {
		m.PublishErrors.Inc()
		return
	}
	m.Published.Inc()
}

// WriteTextfile writes every metric to path in the text exposition format
// for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

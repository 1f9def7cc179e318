package database

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	log "github.com/sirupsen/logrus"
)

// RunCollection holds one document per analysis run
const RunCollection = "runs"

type (
	// ProfileWriter persists host threat profiles, one document per address.
	// Each run overwrites the previous profile of a host.
	ProfileWriter struct {
		db         *DB
		collection string
		version    string
		log        *log.Logger
	}

	// profileDocument is the stored form of a correlate.Profile. Technique
	// evidence is kept as a list since technique ids contain dots.
	profileDocument struct {
		IP          string        `bson:"_id,omitempty"`
		RunID       string        `bson:"run_id"`
		Analyzed    time.Time     `bson:"analyzed"`
		Score       float64       `bson:"score"`
		ThreatLevel finding.Level `bson:"threat_level"`
		Confidence  float64       `bson:"confidence"`

		BeaconCount    int `bson:"beacon_count"`
		DNSThreatCount int `bson:"dns_threat_count"`
		AlertCount     int `bson:"alert_count"`
		LongConnCount  int `bson:"long_conn_count"`

		DetectorScores map[string]float64 `bson:"detector_scores"`
		Roles          []finding.Role     `bson:"roles"`

		Techniques        []string                       `bson:"techniques"`
		TechniqueEvidence []*correlate.TechniqueEvidence `bson:"technique_evidence"`
		Timeline          []correlate.TimelineEvent      `bson:"timeline"`
		Narrative         string                         `bson:"narrative"`
		Reasons           []string                       `bson:"reasons"`

		RelatedIPs     []string  `bson:"related_ips"`
		RelatedDomains []string  `bson:"related_domains"`
		FirstSeen      time.Time `bson:"first_seen"`
		LastSeen       time.Time `bson:"last_seen"`
	}

	// RunRecord summarizes one analysis run
	RunRecord struct {
		RunID      string         `bson:"_id"`
		Started    time.Time      `bson:"started"`
		ElapsedMS  int64          `bson:"elapsed_ms"`
		Version    string         `bson:"version"`
		Records    map[string]int `bson:"records"`
		Hosts      int            `bson:"hosts"`
		Levels     map[string]int `bson:"levels"`
		Techniques []string       `bson:"techniques"`
		Failures   []string       `bson:"failures"`
	}
)

// NewProfileWriter creates a writer targeting the configured profile collection
func NewProfileWriter(db *DB, conf *config.Config, logger *log.Logger) *ProfileWriter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ProfileWriter{
		db:         db,
		collection: conf.S.MongoDB.ProfileCollection,
		version:    conf.S.Version,
		log:        logger,
	}
}

// EnsureCollections creates the profile and run collections with their indexes
func (w *ProfileWriter) EnsureCollections() error {
	err := w.db.EnsureCollection(w.collection, []mgo.Index{
		{Key: []string{"-score"}},
		{Key: []string{"threat_level"}},
		{Key: []string{"run_id"}},
		{Key: []string{"techniques"}},
	})
	if err != nil {
		return fmt.Errorf("could not build %s: %w", w.collection, err)
	}

	err = w.db.EnsureCollection(RunCollection, []mgo.Index{
		{Key: []string{"-started"}},
	})
	if err != nil {
		return fmt.Errorf("could not build %s: %w", RunCollection, err)
	}
	return nil
}

// Write upserts every profile keyed by its address and returns the number
// of profiles written
func (w *ProfileWriter) Write(runID string, profiles correlate.Profiles) (int, error) {
	if len(profiles) == 0 {
		return 0, nil
	}

	writer := NewBulkWriter(w.db, w.log, true, "profiles")
	writer.Start()
	writer.Collect(profileChanges(w.collection, runID, time.Now().UTC(), profiles))
	err := writer.Close()

	written := writer.Applied()
	w.log.WithFields(log.Fields{
		"run_id":     runID,
		"collection": w.collection,
		"profiles":   written,
	}).Info("Wrote host threat profiles")

	if err != nil {
		return written, fmt.Errorf("failed to write profiles for run %s: %w", runID, err)
	}
	return written, nil
}

// RecordRun stores the summary of an analysis run
func (w *ProfileWriter) RecordRun(a *correlate.Analysis) error {
	ssn := w.db.Session.Copy()
	defer ssn.Close()

	record := runRecord(a, w.version)
	_, err := ssn.DB(w.db.SelectedDB()).C(RunCollection).UpsertId(record.RunID, record)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", a.RunID, err)
	}
	return nil
}

// LatestRun returns the most recently started run
func (w *ProfileWriter) LatestRun() (RunRecord, error) {
	ssn := w.db.Session.Copy()
	defer ssn.Close()

	var record RunRecord
	err := ssn.DB(w.db.SelectedDB()).C(RunCollection).Find(nil).Sort("-started").One(&record)
	return record, err
}

// Find loads the stored profile of ip
func (w *ProfileWriter) Find(ip string) (*correlate.Profile, error) {
	ssn := w.db.Session.Copy()
	defer ssn.Close()

	var doc profileDocument
	err := ssn.DB(w.db.SelectedDB()).C(w.collection).FindId(ip).One(&doc)
	if errors.Is(err, mgo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", correlate.ErrProfileNotFound, ip)
	}
	if err != nil {
		return nil, err
	}
	return doc.profile(), nil
}

// profileChanges builds one upsert per profile, strongest first
func profileChanges(collection, runID string, analyzed time.Time, profiles correlate.Profiles) BulkChanges {
	changes := make([]BulkChange, 0, len(profiles))
	for _, p := range profiles.Sorted() {
		doc := newProfileDocument(p, runID, analyzed)
		changes = append(changes, BulkChange{
			Selector: bson.M{"_id": p.IP},
			Update: bson.M{
				"$set":         doc,
				"$inc":         bson.M{"runs_seen": 1},
				"$setOnInsert": bson.M{"first_run": runID},
			},
			Upsert: true,
		})
	}
	return BulkChanges{collection: changes}
}

// newProfileDocument leaves the address unset; it is supplied by the selector
func newProfileDocument(p *correlate.Profile, runID string, analyzed time.Time) *profileDocument {
	doc := &profileDocument{
		RunID:          runID,
		Analyzed:       analyzed,
		Score:          p.Score,
		ThreatLevel:    p.ThreatLevel,
		Confidence:     p.Confidence,
		BeaconCount:    p.BeaconCount,
		DNSThreatCount: p.DNSThreatCount,
		AlertCount:     p.AlertCount,
		LongConnCount:  p.LongConnCount,
		DetectorScores: make(map[string]float64, len(p.DetectorScores)),
		Roles:          p.Roles,
		Techniques:     p.Techniques,
		Timeline:       p.Timeline,
		Narrative:      p.Narrative,
		Reasons:        p.Reasons,
		RelatedIPs:     p.RelatedIPs,
		RelatedDomains: p.RelatedDomains,
		FirstSeen:      p.FirstSeen,
		LastSeen:       p.LastSeen,
	}
	for d, score := range p.DetectorScores {
		doc.DetectorScores[string(d)] = score
	}
	for _, id := range p.Techniques {
		if ev, ok := p.TechniqueEvidence[id]; ok {
			doc.TechniqueEvidence = append(doc.TechniqueEvidence, ev)
		}
	}
	return doc
}

func (doc *profileDocument) profile() *correlate.Profile {
	p := &correlate.Profile{
		IP:                doc.IP,
		Score:             doc.Score,
		ThreatLevel:       doc.ThreatLevel,
		Confidence:        doc.Confidence,
		BeaconCount:       doc.BeaconCount,
		DNSThreatCount:    doc.DNSThreatCount,
		AlertCount:        doc.AlertCount,
		LongConnCount:     doc.LongConnCount,
		DetectorScores:    make(map[finding.Detector]float64, len(doc.DetectorScores)),
		Roles:             doc.Roles,
		Techniques:        doc.Techniques,
		TechniqueEvidence: make(map[string]*correlate.TechniqueEvidence, len(doc.TechniqueEvidence)),
		Timeline:          doc.Timeline,
		Narrative:         doc.Narrative,
		Reasons:           doc.Reasons,
		RelatedIPs:        doc.RelatedIPs,
		RelatedDomains:    doc.RelatedDomains,
		FirstSeen:         doc.FirstSeen,
		LastSeen:          doc.LastSeen,
	}
	for d, score := range doc.DetectorScores {
		p.DetectorScores[finding.Detector(d)] = score
	}
	for _, ev := range doc.TechniqueEvidence {
		p.TechniqueEvidence[ev.ID] = ev
	}
	return p
}

func runRecord(a *correlate.Analysis, version string) RunRecord {
	overview := a.Profiles.Overview()

	record := RunRecord{
		RunID:     a.RunID,
		Started:   a.Started,
		ElapsedMS: a.Elapsed.Milliseconds(),
		Version:   version,
		Records: map[string]int{
			"connections": a.Records.Connections,
			"dns_queries": a.Records.DNSQueries,
			"alerts":      a.Records.Alerts,
		},
		Hosts:      overview.Hosts,
		Levels:     make(map[string]int, len(overview.Levels)),
		Techniques: make([]string, 0, len(overview.Techniques)),
		Failures:   make([]string, 0, len(a.Failures)),
	}
	for level, n := range overview.Levels {
		record.Levels[string(level)] = n
	}
	for id := range overview.Techniques {
		record.Techniques = append(record.Techniques, id)
	}
	sort.Strings(record.Techniques)
	for _, failure := range a.Failures {
		record.Failures = append(record.Failures, failure.Error())
	}
	return record
}

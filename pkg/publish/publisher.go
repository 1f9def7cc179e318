// Package publish sends host profiles to NATS so downstream responders can
// act on them.
package publish

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/finding"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message headers set on every published profile
const (
	HeaderRunID       = "x-run-id"
	HeaderHostIP      = "x-host-ip"
	HeaderThreatLevel = "x-threat-level"
	HeaderScore       = "x-score"
)

type (
	// MsgPublisher is the part of a NATS connection the Publisher uses
	MsgPublisher interface {
		PublishMsg(msg *nats.Msg) error
	}

	// Observer is told the outcome of every publication
	Observer interface {
		ObservePublished(err error)
	}

	// Publisher publishes profiles at or above a threat level
	Publisher struct {
		conn     MsgPublisher
		subject  string
		minLevel finding.Level
		observer Observer
		log      *log.Logger
	}
)

// Connect dials the NATS server named in the config and creates a
// Publisher on the connection. Close the returned connection when done.
func Connect(conf *config.Config, logger *log.Logger) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(conf.S.NATS.URL,
		nats.Name("threatfuse"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to NATS at %s: %w", conf.S.NATS.URL, err)
	}
	minLevel, err := finding.ParseLevel(conf.S.NATS.MinLevel)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return NewPublisher(nc, conf.S.NATS.Subject, minLevel, logger), nc, nil
}

// NewPublisher creates a Publisher sending to subject over conn
func NewPublisher(conn MsgPublisher, subject string, minLevel finding.Level, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{conn: conn, subject: subject, minLevel: minLevel, log: logger}
}

// SetObserver attaches o to every following publication
func (p *Publisher) SetObserver(o Observer) {
	p.observer = o
}

// Publish sends every profile rated minLevel or worse, highest score first.
// It keeps going past failures and returns how many profiles were sent.
func (p *Publisher) Publish(runID string, profiles correlate.Profiles) (int, error) {
	var errs []error
	sent := 0
	for _, profile := range profiles.AtLeast(p.minLevel) {
		err := p.publishProfile(runID, profile)
		if p.observer != nil {
			p.observer.ObservePublished(err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("profile %s: %w", profile.IP, err))
			continue
		}
		sent++
	}

	p.log.WithFields(log.Fields{
		"run_id":  runID,
		"subject": p.subject,
		"sent":    sent,
		"failed":  len(errs),
	}).Info("published host profiles")

	if len(errs) > 0 {
		return sent, fmt.Errorf("failed to publish %d profiles: %w", len(errs), errors.Join(errs...))
	}
	return sent, nil
}

func (p *Publisher) publishProfile(runID string, profile *correlate.Profile) error {
	body, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	header := nats.Header{}
	header.Set(HeaderRunID, runID)
	header.Set(HeaderHostIP, profile.IP)
	header.Set(HeaderThreatLevel, string(profile.ThreatLevel))
	header.Set(HeaderScore, strconv.FormatFloat(profile.Score, 'f', 3, 64))

	msg := &nats.Msg{Subject: p.subject, Data: body, Header: header}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/activecm/threatfuse/pkg/data"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

// maxLineSize bounds a single JSON line; large DNS answer lists stay well
// under it
const maxLineSize = 1024 * 1024

// envelope is one line of a normalized telemetry file. Exactly one of the
// fields is expected to be set.
type envelope struct {
	Conn  *data.Connection `json:"conn"`
	DNS   *data.DNSQuery   `json:"dns"`
	Alert *data.Alert      `json:"alert"`
}

// LoadStats reports what a Load call ingested
type LoadStats struct {
	Lines   int
	Counts  Counts
	Skipped int
}

// Load reads JSON lines of normalized records from r into s. Lines that
// fail to decode or validate are logged and skipped. Only read errors are
// returned.
func Load(r io.Reader, s *Store, logger *log.Logger) (LoadStats, error) {
	var stats LoadStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		stats.Lines++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		if err := loadLine(line, s, &stats.Counts); err != nil {
			stats.Skipped++
			logger.WithFields(log.Fields{
				"line":  stats.Lines,
				"error": err.Error(),
			}).Warn("Skipping malformed telemetry record")
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading telemetry: %w", err)
	}
	return stats, nil
}

func loadLine(line []byte, s *Store, counts *Counts) error {
	var env envelope
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(line, &env); err != nil {
		return err
	}

	switch {
	case env.Conn != nil:
		if err := env.Conn.Validate(); err != nil {
			return err
		}
		s.InsertConnection(*env.Conn)
		counts.Connections++
	case env.DNS != nil:
		if err := env.DNS.Validate(); err != nil {
			return err
		}
		s.InsertDNSQuery(*env.DNS)
		counts.DNSQueries++
	case env.Alert != nil:
		if err := env.Alert.Validate(); err != nil {
			return err
		}
		s.InsertAlert(*env.Alert)
		counts.Alerts++
	default:
		return errors.New("record has no conn, dns or alert body")
	}
	return nil
}

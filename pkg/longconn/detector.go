package longconn

import (
	"sort"
	"time"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Detector finds connections that stay open longer than their protocol warrants
type Detector struct {
	conf Config
	log  *log.Logger
}

// NewDetector creates a long connection detector
func NewDetector(conf Config, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Detector{conf: conf, log: logger}
}

// Analyze scores every connection at least MinDuration long and returns
// those reaching MinScore ordered by score, highest first
func (d *Detector) Analyze(s *store.Store) []*Finding {
	minDuration := d.conf.MinDuration.Seconds()
	var results []*Finding
	var candidates, low int

	s.EachConnection(func(c *data.Connection) {
		if c.Duration < minDuration {
			return
		}
		candidates++
		f := d.evaluate(c)
		if f.TotalScore < d.conf.MinScore {
			low++
			return
		}
		results = append(results, f)
	})
	sortFindings(results)

	d.log.WithFields(log.Fields{
		"candidates": candidates,
		"below_min":  low,
		"findings":   len(results),
	}).Debug("long connection analysis complete")
	return results
}

// sortFindings orders by score, then duration, then endpoints and start time
func sortFindings(results []*Finding) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Conn.Duration != b.Conn.Duration {
			return a.Conn.Duration > b.Conn.Duration
		}
		if a.Conn.SrcIP != b.Conn.SrcIP {
			return a.Conn.SrcIP < b.Conn.SrcIP
		}
		if a.Conn.DstIP != b.Conn.DstIP {
			return a.Conn.DstIP < b.Conn.DstIP
		}
		if ta, tb := a.Conn.Tuple(), b.Conn.Tuple(); ta != tb {
			return ta < tb
		}
		return a.Conn.Timestamp.Before(b.Conn.Timestamp)
	})
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

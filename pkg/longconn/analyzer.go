package longconn

import (
	"fmt"
	"math"
	"net"
	"strings"

	"github.com/activecm/threatfuse/pkg/data"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/util"
)

// component weights of the long connection score
const (
	durationWeight    = 0.30
	transferWeight    = 0.35
	protocolWeight    = 0.20
	destinationWeight = 0.15
)

// transfer thresholds, rates in bytes per second
const (
	uploadRateSaturation = 50000
	sustainedUploadRate  = 10000
	sustainedUploadBytes = 1 << 20
	lowRateCeiling       = 1000
	covertMinDuration    = 1800
	covertSaturation     = 7200
	largeUploadBytes     = 100 * 1000 * 1000
	scheduledMinDuration = 1800
	protocolDuration     = 3600
	ephemeralPortStart   = 49152
)

// serviceOf returns the service of c and whether the sensor identified it.
// Unidentified connections fall back to a guess from the responder port.
func serviceOf(c *data.Connection) (string, bool) {
	service := strings.ToLower(strings.TrimSpace(c.Service))
	if service != "" && service != "-" {
		return service, true
	}
	return portServices[c.DstPort], false
}

func expectedDuration(service string) float64 {
	if expected, ok := expectedDurations[service]; ok {
		return expected
	}
	return defaultExpectedDuration
}

// durationScore grows linearly up to the expected duration and
// logarithmically beyond, saturating at sixteen times the expectation
func durationScore(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	if ratio < 1 {
		return 0.25 * ratio
	}
	return util.Clamp01(0.25 + 0.75*math.Log2(ratio)/4)
}

func transferOf(c *data.Connection) Transfer {
	t := Transfer{TotalBytes: c.TotalBytes()}
	if c.Duration > 0 {
		t.UploadRate = float64(c.OrigBytes) / c.Duration
		t.TotalRate = float64(t.TotalBytes) / c.Duration
	}
	if t.TotalBytes > 0 {
		t.UploadRatio = float64(c.OrigBytes) / float64(t.TotalBytes)
	}
	t.Covert = c.Duration >= covertMinDuration && t.TotalRate > 0 && t.TotalRate <= lowRateCeiling
	return t
}

// volumeScore maps total bytes from 100KB (0) to 1GB (1) on a log scale
func volumeScore(total int64) float64 {
	return util.Clamp01((math.Log10(float64(total)+1) - 5) / 4)
}

// transferScore takes the stronger of the bulk upload and the sustained
// transfer readings. Every transfer held for covertMinDuration earns the
// sustained reading whatever its rate; lowRateCeiling only decides whether
// it is reported as a covert channel.
func transferScore(c *data.Connection, t Transfer) float64 {
	upload := util.Clamp01(t.UploadRate / uploadRateSaturation)
	imbalance := util.Clamp01((t.UploadRatio - 0.5) / 0.4)
	bulk := 0.4*upload + 0.3*volumeScore(t.TotalBytes) + 0.3*imbalance

	sustained := 0.0
	if c.Duration >= covertMinDuration && t.TotalRate > 0 {
		sustained = util.Clamp01(c.Duration / covertSaturation)
	}
	return math.Max(bulk, sustained)
}

// protocolScore flags request/response protocols held open past their
// expectation
func protocolScore(service string, identified bool, ratio float64) float64 {
	switch {
	case ratio <= 1:
		return 0
	case service == "":
		return 0.4
	case shortLived[service]:
		return util.Clamp01(0.5 + 0.5*math.Log2(ratio)/4)
	case !identified:
		return 0.4
	}
	return 0.3
}

func destinationScore(service string, port int, external bool) float64 {
	score := 0.0
	if external {
		score += 0.6
	}
	switch {
	case port >= ephemeralPortStart:
		score += 0.4
	case service == "" && port >= 1024:
		score += 0.3
	case service != "" && !containsPort(canonicalPorts[service], port):
		score += 0.3
	}
	return util.Clamp01(score)
}

func containsPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

// isExternal reports whether addr is publicly routable and outside the
// configured internal subnets
func isExternal(addr string, internal []*net.IPNet) bool {
	ip := net.ParseIP(addr)
	return util.IPIsPubliclyRoutable(ip) && !util.ContainsIP(internal, ip)
}

// evaluate scores a single connection without applying any threshold
func (d *Detector) evaluate(c *data.Connection) *Finding {
	service, identified := serviceOf(c)
	expected := expectedDuration(service)
	ratio := c.Duration / expected

	f := &Finding{
		Conn:             *c,
		Service:          service,
		ExpectedDuration: expected,
		External:         isExternal(c.DstIP, d.conf.InternalSubnets),
		Transfer:         transferOf(c),
	}
	f.Components = Components{
		Duration:    durationScore(ratio),
		Transfer:    transferScore(c, f.Transfer),
		Protocol:    protocolScore(service, identified, ratio),
		Destination: destinationScore(service, c.DstPort, f.External),
	}
	raw := durationWeight*f.Components.Duration +
		transferWeight*f.Components.Transfer +
		protocolWeight*f.Components.Protocol +
		destinationWeight*f.Components.Destination
	f.SetScore(util.CeilTo(raw*100, 1))
	f.ThreatLevel = f.Level()
	f.Observe(c.Timestamp)
	f.Observe(c.Timestamp.Add(secondsToDuration(c.Duration)))

	conf := 0.4 + 0.3*volumeScore(f.Transfer.TotalBytes)
	if identified {
		conf += 0.3
	} else if service != "" {
		conf += 0.15
	}
	f.SetConfidence(conf)

	f.SetTechniques(techniques(c, service, f))
	f.reasons(ratio)
	return f
}

func techniques(c *data.Connection, service string, f *Finding) *finding.TechniqueSet {
	ids := finding.NewTechniqueSet()
	t := f.Transfer
	if t.UploadRate >= sustainedUploadRate && c.OrigBytes >= sustainedUploadBytes {
		ids.Add(mitre.ExfilOverC2Channel)
	}
	if t.Covert {
		ids.Add(mitre.DataTransferSizeLimits, mitre.DataObfuscation)
	}
	if c.Duration > protocolDuration {
		ids.Add(mitre.ApplicationLayerProtocol, protocolTechniques[service])
	}
	if c.Duration >= scheduledMinDuration && c.OrigBytes > c.RespBytes &&
		float64(c.OrigPackets) >= c.Duration/60 {
		ids.Add(mitre.ScheduledTransfer)
	}
	if f.External && c.OrigBytes >= largeUploadBytes {
		ids.Add(mitre.ExfilAlternativeProtocol)
	}
	return ids
}

func (f *Finding) reasons(ratio float64) {
	if ratio > 1 {
		service := f.Service
		if service == "" {
			service = "unidentified"
		}
		f.AddReason(fmt.Sprintf("%s session held open %.1fx its expected %.0fs", service, ratio, f.ExpectedDuration))
	}
	if f.Transfer.Covert {
		f.AddReason(fmt.Sprintf("low steady transfer of %.0f B/s", f.Transfer.TotalRate))
	} else if f.Transfer.UploadRate >= sustainedUploadRate {
		f.AddReason(fmt.Sprintf("sustained upload of %.0f B/s", f.Transfer.UploadRate))
	}
	if f.Transfer.UploadRatio > 0.8 {
		f.AddReason(fmt.Sprintf("%.0f%% of bytes sent by the originator", f.Transfer.UploadRatio*100))
	}
	if f.External {
		f.AddReason(fmt.Sprintf("external destination %s:%d", f.Conn.DstIP, f.Conn.DstPort))
	}
}

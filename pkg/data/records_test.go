package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestConnectionValidate(t *testing.T) {
	conn := Connection{Timestamp: testTime, SrcIP: "10.0.0.5", DstIP: "203.0.113.9", DstPort: 443, Proto: "tcp", Service: "ssl"}
	assert.NoError(t, conn.Validate())
	assert.Equal(t, "443:tcp:ssl", conn.Tuple())

	conn.DstIP = ""
	assert.Equal(t, ErrMissingAddress, conn.Validate())

	conn.DstIP = "203.0.113.9"
	conn.Timestamp = time.Time{}
	assert.Equal(t, ErrMissingTimestamp, conn.Validate())
}

func TestConnectionTotalBytes(t *testing.T) {
	conn := Connection{OrigBytes: 1200, RespBytes: 300}
	assert.Equal(t, int64(1500), conn.TotalBytes())
}

func TestDNSQueryName(t *testing.T) {
	q := DNSQuery{Query: "WWW.Example.COM."}
	assert.Equal(t, "www.example.com", q.Name())
}

func TestDNSQueryNXDomain(t *testing.T) {
	assert.True(t, (&DNSQuery{RCode: "NXDOMAIN"}).IsNXDomain())
	assert.True(t, (&DNSQuery{RCode: "nxdomain"}).IsNXDomain())
	assert.True(t, (&DNSQuery{RCode: "3"}).IsNXDomain())
	assert.False(t, (&DNSQuery{RCode: "NOERROR"}).IsNXDomain())
	assert.False(t, (&DNSQuery{}).IsNXDomain())
}

func TestDNSQueryValidate(t *testing.T) {
	q := DNSQuery{Timestamp: testTime, SrcIP: "10.0.0.5", Query: "example.com"}
	assert.NoError(t, q.Validate())

	q.Query = ""
	assert.Error(t, q.Validate())

	q.Query = "example.com"
	q.SrcIP = ""
	assert.Equal(t, ErrMissingAddress, q.Validate())
}

func TestAlertValidate(t *testing.T) {
	a := Alert{Timestamp: testTime, SrcIP: "198.51.100.7", DstIP: "10.0.0.5", Signature: "ET TROJAN", Severity: 1}
	assert.NoError(t, a.Validate())

	a.SrcIP = ""
	assert.Equal(t, ErrMissingAddress, a.Validate())
}

func TestStringSet(t *testing.T) {
	set := make(StringSet)
	set.Insert("b", "a", "", "b")
	assert.Equal(t, []string{"a", "b"}, set.Items())
	assert.True(t, set.Contains("a"))
	assert.False(t, set.Contains(""))
}

package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ipBoolTestCase struct {
	ip  string
	out bool
	msg string
}

func TestIPIsPublicRoutable(t *testing.T) {
	testCases := []ipBoolTestCase{
		{"10.1.2.3", false, "RFC1918 Class A"},
		{"172.16.1.2", false, "RFC1918 Class B"},
		{"192.168.1.2", false, "RFC1918 Class C"},
		{"100.64.3.4", false, "carrier grade NAT"},
		{"fc00:1234::", false, "IPv6 local address"},
		{"127.0.0.5", false, "IPv4 loopback"},
		{"::1", false, "IPv6 loopback"},
		{"169.254.1.2", false, "IPv4 link local"},
		{"fe80:1234::", false, "IPv6 link local"},
		{"224.0.0.1", false, "IPv4 multicast"},
		{"8.8.8.8", true, "google dns ipv4"},
		{"2001:4860:4860::8888", true, "google dns ipv6"},
	}

	for _, testCase := range testCases {
		output := IPIsPubliclyRoutable(net.ParseIP(testCase.ip))
		assert.Equal(t, testCase.out, output, testCase.msg)
	}
}

func TestParseSubnets(t *testing.T) {
	nets, err := ParseSubnets([]string{"192.168.0.0/24", "2001:db8::/32", "192.168.0.1", "2001:db8::1"})
	require.NoError(t, err)
	require.Len(t, nets, 4)
	assert.Equal(t, "192.168.0.1/32", nets[2].String())
	assert.Equal(t, "2001:db8::1/128", nets[3].String())

	_, err = ParseSubnets([]string{"invalidIP"})
	assert.Error(t, err)
	_, err = ParseSubnets([]string{"300.0.0.0/24"})
	assert.Error(t, err)
}

func TestContainsIP(t *testing.T) {
	nets, err := ParseSubnets([]string{"10.0.0.0/8", "8.8.8.8"})
	require.NoError(t, err)
	assert.True(t, ContainsIP(nets, net.ParseIP("10.2.3.4")))
	assert.True(t, ContainsIP(nets, net.ParseIP("8.8.8.8")))
	assert.False(t, ContainsIP(nets, net.ParseIP("8.8.4.4")))
	assert.False(t, ContainsIP(nets, nil))
}

func TestContainsDomain(t *testing.T) {
	domains := []string{"good.com", "*.mydomain.com"}
	assert.True(t, ContainsDomain(domains, "good.com"))
	assert.False(t, ContainsDomain(domains, "a.good.com"))
	assert.True(t, ContainsDomain(domains, "a.mydomain.com"))
	assert.True(t, ContainsDomain(domains, "mydomain.com"))
	assert.False(t, ContainsDomain(domains, "notmydomain.org"))
}

func TestIsIPv4Literal(t *testing.T) {
	assert.True(t, IsIPv4Literal("203.0.113.9"))
	assert.False(t, IsIPv4Literal("2001:db8::1"))
	assert.False(t, IsIPv4Literal("::ffff:1.2.3.4"))
	assert.False(t, IsIPv4Literal("example.com"))
}

package alertscore

import (
	"regexp"
	"strings"

	"github.com/activecm/threatfuse/pkg/mitre"
)

// severityScores maps the native IDS severity, 1 being the most severe
var severityScores = map[int]float64{1: 90, 2: 60, 3: 30}

// defaultSeverityScore applies to severities outside 1-3
const defaultSeverityScore = 30

// defaultCategoryScore applies to categories missing from the table
const defaultCategoryScore = 40

// categoryEntry scores an alert classification. names holds both the short
// class type and its description.
type categoryEntry struct {
	names      []string
	score      float64
	techniques []string
}

var categoryEntries = []categoryEntry{
	{[]string{"trojan-activity", "a network trojan was detected"}, 95, []string{mitre.ApplicationLayerProtocol}},
	{[]string{"command-and-control", "malware command and control activity detected"}, 95, []string{mitre.ApplicationLayerProtocol}},
	{[]string{"domain-c2", "domain observed used for c2 detected"}, 95, []string{mitre.ApplicationLayerProtocol, mitre.DNS}},
	{[]string{"successful-admin", "successful administrator privilege gain"}, 95, []string{mitre.ExploitPrivilegeEscalation}},
	{[]string{"successful-user", "successful user privilege gain"}, 90, []string{mitre.ExploitPrivilegeEscalation}},
	{[]string{"targeted-activity", "targeted malicious activity was detected"}, 90, nil},
	{[]string{"exploit-kit", "exploit kit activity detected"}, 90, []string{mitre.ExploitPublicFacingApp}},
	{[]string{"credential-theft", "successful credential theft detected"}, 90, []string{mitre.CredentialDumping}},
	{[]string{"attempted-admin", "attempted administrator privilege gain"}, 85, []string{mitre.ExploitPrivilegeEscalation}},
	{[]string{"shellcode-detect", "executable code was detected"}, 85, []string{mitre.IngressToolTransfer}},
	{[]string{"web-application-attack", "web application attack"}, 85, []string{mitre.ExploitPublicFacingApp}},
	{[]string{"coin-mining", "crypto currency mining activity detected"}, 80, []string{mitre.ResourceHijacking}},
	{[]string{"attempted-user", "attempted user privilege gain"}, 75, []string{mitre.ExploitPrivilegeEscalation}},
	{[]string{"successful-dos", "denial of service"}, 75, []string{mitre.NetworkDenialOfService}},
	{[]string{"denial-of-service", "detection of a denial of service attack"}, 70, []string{mitre.NetworkDenialOfService}},
	{[]string{"default-login-attempt", "attempt to login by a default username and password"}, 65, []string{mitre.BruteForce}},
	{[]string{"attempted-dos", "attempted denial of service"}, 60, []string{mitre.NetworkDenialOfService}},
	{[]string{"successful-recon-largescale", "large scale information source leak"}, 60, []string{mitre.NetworkServiceDiscovery}},
	{[]string{"suspicious-login", "an attempted login using a suspicious username was detected"}, 60, []string{mitre.BruteForce}},
	{[]string{"system-call-detect", "a system call was detected"}, 60, nil},
	{[]string{"misc-attack", "misc attack"}, 60, nil},
	{[]string{"social-engineering", "possible social engineering attempted"}, 60, []string{mitre.Phishing}},
	{[]string{"successful-recon-limited", "information leak"}, 55, []string{mitre.NetworkServiceDiscovery}},
	{[]string{"unsuccessful-user", "unsuccessful user privilege gain"}, 55, nil},
	{[]string{"bad-unknown", "potentially bad traffic"}, 50, nil},
	{[]string{"network-scan", "detection of a network scan"}, 50, []string{mitre.NetworkServiceDiscovery}},
	{[]string{"suspicious-filename-detect", "a suspicious filename was detected"}, 50, nil},
	{[]string{"web-application-activity", "access to a potentially vulnerable web application"}, 50, nil},
	{[]string{"attempted-recon", "attempted information leak"}, 45, []string{mitre.NetworkServiceDiscovery}},
	{[]string{"string-detect", "a suspicious string was detected"}, 45, nil},
	{[]string{"non-standard-protocol", "detection of a non-standard protocol or event"}, 45, nil},
	{[]string{"pup-activity", "possibly unwanted program detected"}, 40, nil},
	{[]string{"unusual-client-port-connection", "a client was using an unusual port"}, 40, nil},
	{[]string{"rpc-portmap-decode", "decode of an rpc query"}, 40, nil},
	{[]string{"external-ip-check", "device retrieving external ip address detected"}, 35, nil},
	{[]string{"unknown", "unknown traffic"}, 25, nil},
	{[]string{"protocol-command-decode", "generic protocol command decode"}, 25, nil},
	{[]string{"policy-violation", "potential corporate privacy violation"}, 25, nil},
	{[]string{"inappropriate-content", "inappropriate content was detected"}, 25, nil},
	{[]string{"tcp-connection", "a tcp connection was detected"}, 20, nil},
	{[]string{"misc-activity", "misc activity"}, 20, nil},
	{[]string{"not-suspicious", "not suspicious traffic"}, 15, nil},
	{[]string{"icmp-event", "generic icmp event"}, 15, nil},
}

// categories indexes categoryEntries by lower case name
var categories = func() map[string]*categoryEntry {
	index := make(map[string]*categoryEntry)
	for i := range categoryEntries {
		for _, name := range categoryEntries[i].names {
			index[name] = &categoryEntries[i]
		}
	}
	return index
}()

func lookupCategory(category string) (*categoryEntry, bool) {
	entry, ok := categories[strings.ToLower(strings.TrimSpace(category))]
	return entry, ok
}

// signaturePattern attaches techniques to signatures matching re
type signaturePattern struct {
	re         *regexp.Regexp
	techniques []string
}

var signaturePatterns = []signaturePattern{
	{regexp.MustCompile(`(?i)\bscan|nmap|masscan|zmap`), []string{mitre.NetworkServiceDiscovery}},
	{regexp.MustCompile(`(?i)brute.?force|login attempt|password spray|failed (login|auth)`), []string{mitre.BruteForce}},
	{regexp.MustCompile(`(?i)powershell`), []string{mitre.PowerShell}},
	{regexp.MustCompile(`(?i)mimikatz|lsass|credential dump`), []string{mitre.CredentialDumping}},
	{regexp.MustCompile(`(?i)\brdp\b|remote desktop`), []string{mitre.RemoteDesktopProtocol}},
	{regexp.MustCompile(`(?i)\bsmb\b|admin\$|psexec`), []string{mitre.SMBAdminShares}},
	{regexp.MustCompile(`(?i)\bssh\b`), []string{mitre.SSH}},
	{regexp.MustCompile(`(?i)coin ?min|xmrig|stratum|monero|cryptocurrency`), []string{mitre.ResourceHijacking}},
	{regexp.MustCompile(`(?i)\btor\b|\.onion`), []string{mitre.MultiHopProxy}},
	{regexp.MustCompile(`(?i)ransom`), []string{mitre.DataEncryptedForImpact}},
	{regexp.MustCompile(`(?i)phish`), []string{mitre.Phishing}},
	{regexp.MustCompile(`(?i)exploit|cve-\d{4}-\d+|sql injection|\bsqli\b|remote code execution|\brce\b|command injection`), []string{mitre.ExploitPublicFacingApp}},
	{regexp.MustCompile(`(?i)trojan|\bc2\b|\bcnc\b|command and control|beacon|backdoor|\brat\b`), []string{mitre.ApplicationLayerProtocol}},
	{regexp.MustCompile(`(?i)dns tunnel|iodine|dnscat`), []string{mitre.DNS, mitre.ProtocolTunneling}},
	{regexp.MustCompile(`(?i)exfil`), []string{mitre.ExfilOverC2Channel}},
	{regexp.MustCompile(`(?i)dropper|executable download|\.exe\b|payload download`), []string{mitre.IngressToolTransfer}},
	{regexp.MustCompile(`(?i)\bdos\b|\bddos\b|flood`), []string{mitre.NetworkDenialOfService}},
	{regexp.MustCompile(`(?i)privilege escalation`), []string{mitre.ExploitPrivilegeEscalation}},
	{regexp.MustCompile(`(?i)teamviewer|anydesk|remote access tool`), []string{mitre.RemoteAccessSoftware}},
}

// protocolTechniques are used when neither the signature nor the category
// yielded a technique
var protocolTechniques = map[string]string{
	"http":  mitre.WebProtocols,
	"http2": mitre.WebProtocols,
	"ftp":   mitre.FileTransferProtocols,
	"tftp":  mitre.FileTransferProtocols,
	"smtp":  mitre.MailProtocols,
	"imap":  mitre.MailProtocols,
	"pop3":  mitre.MailProtocols,
	"dns":   mitre.DNS,
	"tls":   mitre.EncryptedChannel,
	"ssh":   mitre.SSH,
	"smb":   mitre.SMBAdminShares,
	"rdp":   mitre.RemoteDesktopProtocol,
}

// canonicalPorts lists the ports each application protocol normally uses
var canonicalPorts = map[string][]int{
	"http":   {80, 8080, 8000, 8008, 8888},
	"http2":  {80, 443, 8080, 8443},
	"tls":    {443, 8443, 465, 636, 853, 993, 995},
	"dns":    {53},
	"smtp":   {25, 465, 587},
	"ssh":    {22},
	"ftp":    {20, 21},
	"tftp":   {69},
	"smb":    {139, 445},
	"rdp":    {3389},
	"dcerpc": {135},
	"krb5":   {88},
	"ntp":    {123},
	"snmp":   {161, 162},
	"imap":   {143, 993},
	"pop3":   {110, 995},
	"sip":    {5060, 5061},
	"mqtt":   {1883, 8883},
	"ldap":   {389, 636},
	"telnet": {23},
	"dhcp":   {67, 68},
	"nfs":    {2049},
	"irc":    {6667, 6697},
	"rfb":    {5900},
}

// standardTransports carry no context points
var standardTransports = map[string]struct{}{"tcp": {}, "udp": {}, "icmp": {}, "ipv6-icmp": {}, "icmpv6": {}}

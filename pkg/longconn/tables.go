package longconn

import "github.com/activecm/threatfuse/pkg/mitre"

// expectedDurations is how long, in seconds, a session of each service
// normally stays open
var expectedDurations = map[string]float64{
	"dns":      5,
	"ntp":      5,
	"dhcp":     5,
	"snmp":     5,
	"krb":      30,
	"smtp":     120,
	"http":     300,
	"pop3":     300,
	"ldap":     300,
	"ftp-data": 600,
	"ssl":      1800,
	"tls":      1800,
	"https":    1800,
	"ftp":      1800,
	"imap":     1800,
	"mysql":    1800,
	"ssh":      3600,
	"smb":      3600,
	"sip":      3600,
	"rdp":      7200,
	"irc":      7200,
}

// defaultExpectedDuration applies to unidentified services
const defaultExpectedDuration = 600

// shortLived services are request/response protocols that should never be
// held open
var shortLived = map[string]bool{
	"dns": true, "ntp": true, "dhcp": true, "snmp": true, "krb": true,
	"http": true, "smtp": true, "pop3": true, "ldap": true,
}

// canonicalPorts lists the responder ports each service normally uses
var canonicalPorts = map[string][]int{
	"dns":      {53},
	"ntp":      {123},
	"dhcp":     {67, 68},
	"snmp":     {161, 162},
	"krb":      {88},
	"smtp":     {25, 465, 587},
	"http":     {80, 8000, 8008, 8080, 8888},
	"pop3":     {110, 995},
	"ldap":     {389, 636},
	"ftp-data": {20},
	"ssl":      {443, 465, 636, 853, 993, 995, 8443},
	"tls":      {443, 465, 636, 853, 993, 995, 8443},
	"https":    {443, 8443},
	"ftp":      {21},
	"imap":     {143, 993},
	"mysql":    {3306},
	"ssh":      {22},
	"smb":      {139, 445},
	"sip":      {5060, 5061},
	"rdp":      {3389},
	"irc":      {6667, 6697},
}

// portServices guesses the service of connections the sensor did not
// identify
var portServices = func() map[int]string {
	index := make(map[int]string)
	for _, service := range []string{
		"dns", "ntp", "dhcp", "snmp", "krb", "smtp", "http", "pop3", "ldap",
		"ftp-data", "ftp", "imap", "mysql", "ssh", "smb", "sip", "rdp", "irc",
	} {
		for _, port := range canonicalPorts[service] {
			if _, ok := index[port]; !ok {
				index[port] = service
			}
		}
	}
	// the tls ports shared with mail protocols keep their mail service
	for _, port := range canonicalPorts["ssl"] {
		if _, ok := index[port]; !ok {
			index[port] = "ssl"
		}
	}
	return index
}()

// protocolTechniques are the application layer protocol sub techniques
var protocolTechniques = map[string]string{
	"http": mitre.WebProtocols,
	"ftp":  mitre.FileTransferProtocols,
	"smtp": mitre.MailProtocols,
	"imap": mitre.MailProtocols,
	"pop3": mitre.MailProtocols,
	"dns":  mitre.DNS,
}

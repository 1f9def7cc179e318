// Package mitre maps the ATT&CK technique identifiers emitted by the
// detectors to their human readable names and tactics. The table is only
// consulted when building analyst facing output.
package mitre

import "sort"

// Technique identifiers attached to findings
const (
	ApplicationLayerProtocol   = "T1071"
	WebProtocols               = "T1071.001"
	FileTransferProtocols      = "T1071.002"
	MailProtocols              = "T1071.003"
	DNS                        = "T1071.004"
	EncryptedChannel           = "T1573"
	ProtocolTunneling          = "T1572"
	ExfilAlternativeProtocol   = "T1048"
	ExfilUnencryptedProtocol   = "T1048.003"
	ExfilOverC2Channel         = "T1041"
	DataTransferSizeLimits     = "T1030"
	DataObfuscation            = "T1001"
	ScheduledTransfer          = "T1029"
	DynamicResolution          = "T1568"
	FastFluxDNS                = "T1568.001"
	DomainGenerationAlgorithm  = "T1568.002"
	NetworkServiceDiscovery    = "T1046"
	BruteForce                 = "T1110"
	ExploitPublicFacingApp     = "T1190"
	PowerShell                 = "T1059.001"
	CredentialDumping          = "T1003"
	RemoteDesktopProtocol      = "T1021.001"
	SMBAdminShares             = "T1021.002"
	SSH                        = "T1021.004"
	ResourceHijacking          = "T1496"
	MultiHopProxy              = "T1090.003"
	DataEncryptedForImpact     = "T1486"
	Phishing                   = "T1566"
	IngressToolTransfer        = "T1105"
	NetworkDenialOfService     = "T1498"
	ExploitPrivilegeEscalation = "T1068"
	RemoteAccessSoftware       = "T1219"
	DataFromLocalSystem        = "T1005"
)

// Tactic identifiers
const (
	TacticReconnaissance      = "TA0043"
	TacticInitialAccess       = "TA0001"
	TacticExecution           = "TA0002"
	TacticPrivilegeEscalation = "TA0004"
	TacticDefenseEvasion      = "TA0005"
	TacticCredentialAccess    = "TA0006"
	TacticDiscovery           = "TA0007"
	TacticLateralMovement     = "TA0008"
	TacticCollection          = "TA0009"
	TacticExfiltration        = "TA0010"
	TacticCommandAndControl   = "TA0011"
	TacticImpact              = "TA0040"
)

// Technique describes a single ATT&CK technique
type Technique struct {
	ID      string   `json:"id" bson:"id"`
	Name    string   `json:"name" bson:"name"`
	Tactics []string `json:"tactics" bson:"tactics"`
}

var tacticNames = map[string]string{
	TacticReconnaissance:      "Reconnaissance",
	TacticInitialAccess:       "Initial Access",
	TacticExecution:           "Execution",
	TacticPrivilegeEscalation: "Privilege Escalation",
	TacticDefenseEvasion:      "Defense Evasion",
	TacticCredentialAccess:    "Credential Access",
	TacticDiscovery:           "Discovery",
	TacticLateralMovement:     "Lateral Movement",
	TacticCollection:          "Collection",
	TacticExfiltration:        "Exfiltration",
	TacticCommandAndControl:   "Command and Control",
	TacticImpact:              "Impact",
}

var techniques = map[string]Technique{
	ApplicationLayerProtocol:   {ApplicationLayerProtocol, "Application Layer Protocol", []string{TacticCommandAndControl}},
	WebProtocols:               {WebProtocols, "Application Layer Protocol: Web Protocols", []string{TacticCommandAndControl}},
	FileTransferProtocols:      {FileTransferProtocols, "Application Layer Protocol: File Transfer Protocols", []string{TacticCommandAndControl}},
	MailProtocols:              {MailProtocols, "Application Layer Protocol: Mail Protocols", []string{TacticCommandAndControl}},
	DNS:                        {DNS, "Application Layer Protocol: DNS", []string{TacticCommandAndControl}},
	EncryptedChannel:           {EncryptedChannel, "Encrypted Channel", []string{TacticCommandAndControl}},
	ProtocolTunneling:          {ProtocolTunneling, "Protocol Tunneling", []string{TacticCommandAndControl}},
	ExfilAlternativeProtocol:   {ExfilAlternativeProtocol, "Exfiltration Over Alternative Protocol", []string{TacticExfiltration}},
	ExfilUnencryptedProtocol:   {ExfilUnencryptedProtocol, "Exfiltration Over Unencrypted Non-C2 Protocol", []string{TacticExfiltration}},
	ExfilOverC2Channel:         {ExfilOverC2Channel, "Exfiltration Over C2 Channel", []string{TacticExfiltration}},
	DataTransferSizeLimits:     {DataTransferSizeLimits, "Data Transfer Size Limits", []string{TacticExfiltration}},
	DataObfuscation:            {DataObfuscation, "Data Obfuscation", []string{TacticCommandAndControl}},
	ScheduledTransfer:          {ScheduledTransfer, "Scheduled Transfer", []string{TacticExfiltration}},
	DynamicResolution:          {DynamicResolution, "Dynamic Resolution", []string{TacticCommandAndControl}},
	FastFluxDNS:                {FastFluxDNS, "Dynamic Resolution: Fast Flux DNS", []string{TacticCommandAndControl}},
	DomainGenerationAlgorithm:  {DomainGenerationAlgorithm, "Dynamic Resolution: Domain Generation Algorithms", []string{TacticCommandAndControl}},
	NetworkServiceDiscovery:    {NetworkServiceDiscovery, "Network Service Discovery", []string{TacticDiscovery}},
	BruteForce:                 {BruteForce, "Brute Force", []string{TacticCredentialAccess}},
	ExploitPublicFacingApp:     {ExploitPublicFacingApp, "Exploit Public-Facing Application", []string{TacticInitialAccess}},
	PowerShell:                 {PowerShell, "Command and Scripting Interpreter: PowerShell", []string{TacticExecution}},
	CredentialDumping:          {CredentialDumping, "OS Credential Dumping", []string{TacticCredentialAccess}},
	RemoteDesktopProtocol:      {RemoteDesktopProtocol, "Remote Services: Remote Desktop Protocol", []string{TacticLateralMovement}},
	SMBAdminShares:             {SMBAdminShares, "Remote Services: SMB/Windows Admin Shares", []string{TacticLateralMovement}},
	SSH:                        {SSH, "Remote Services: SSH", []string{TacticLateralMovement}},
	ResourceHijacking:          {ResourceHijacking, "Resource Hijacking", []string{TacticImpact}},
	MultiHopProxy:              {MultiHopProxy, "Proxy: Multi-hop Proxy", []string{TacticCommandAndControl}},
	DataEncryptedForImpact:     {DataEncryptedForImpact, "Data Encrypted for Impact", []string{TacticImpact}},
	Phishing:                   {Phishing, "Phishing", []string{TacticInitialAccess}},
	IngressToolTransfer:        {IngressToolTransfer, "Ingress Tool Transfer", []string{TacticCommandAndControl}},
	NetworkDenialOfService:     {NetworkDenialOfService, "Network Denial of Service", []string{TacticImpact}},
	ExploitPrivilegeEscalation: {ExploitPrivilegeEscalation, "Exploitation for Privilege Escalation", []string{TacticPrivilegeEscalation}},
	RemoteAccessSoftware:       {RemoteAccessSoftware, "Remote Access Software", []string{TacticCommandAndControl}},
	DataFromLocalSystem:        {DataFromLocalSystem, "Data from Local System", []string{TacticCollection}},
}

// Lookup returns the technique registered under id
func Lookup(id string) (Technique, bool) {
	t, ok := techniques[id]
	if !ok {
		return Technique{}, false
	}
	t.Tactics = append([]string(nil), t.Tactics...)
	return t, true
}

// Name returns the technique name, or the id itself when unknown
func Name(id string) string {
	if t, ok := techniques[id]; ok {
		return t.Name
	}
	return id
}

// Tactics returns the tactic ids of a technique
func Tactics(id string) []string {
	if t, ok := techniques[id]; ok {
		return append([]string(nil), t.Tactics...)
	}
	return nil
}

// TacticName returns the tactic name, or the id itself when unknown
func TacticName(id string) string {
	if name, ok := tacticNames[id]; ok {
		return name
	}
	return id
}

// IDs returns every known technique id in ascending order
func IDs() []string {
	ids := make([]string, 0, len(techniques))
	for id := range techniques {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/activecm/mgosec"
	"github.com/activecm/threatfuse/util"
	"github.com/blang/semver"
)

type (
	//RunningCfg holds configuration options that are parsed at run time
	RunningCfg struct {
		MongoDB   MongoDBRunningCfg
		Filtering FilteringRunningCfg
		Version   semver.Version
	}

	//MongoDBRunningCfg holds parsed information for connecting to MongoDB
	MongoDBRunningCfg struct {
		AuthMechanismParsed mgosec.AuthMechanism
		SocketTimeout       time.Duration
		TLS                 struct {
			TLSConfig *tls.Config
		}
	}

	//FilteringRunningCfg holds the parsed network lists
	FilteringRunningCfg struct {
		InternalSubnets []*net.IPNet
		AllowlistedNets []*net.IPNet
	}
)

// initRunningConfig uses data in the static config initialize
// the passed in running config
func initRunningConfig(static *StaticCfg, running *RunningCfg) error {
	var err error

	//parse the tls configuration
	if static.MongoDB.TLS.Enabled {
		tlsConf := &tls.Config{}
		if !static.MongoDB.TLS.VerifyCertificate {
			tlsConf.InsecureSkipVerify = true
		}
		if len(static.MongoDB.TLS.CAFile) > 0 {
			pem, err := os.ReadFile(static.MongoDB.TLS.CAFile)
			if err != nil {
				return fmt.Errorf("could not read MongoDB CA file: %w", err)
			}
			tlsConf.RootCAs = x509.NewCertPool()
			tlsConf.RootCAs.AppendCertsFromPEM(pem)
		}
		running.MongoDB.TLS.TLSConfig = tlsConf
	}

	//parse out the mongo authentication mechanism
	authMechanism, err := mgosec.ParseAuthMechanism(
		static.MongoDB.AuthMechanism,
	)
	if err != nil {
		authMechanism = mgosec.None
	}
	running.MongoDB.AuthMechanismParsed = authMechanism

	// the socket timeout is configured in hours
	running.MongoDB.SocketTimeout = time.Duration(static.MongoDB.SocketTimeout) * time.Hour

	running.Filtering.InternalSubnets, err = util.ParseSubnets(static.Filtering.InternalSubnets)
	if err != nil {
		return fmt.Errorf("invalid Filtering.InternalSubnets: %w", err)
	}

	running.Filtering.AllowlistedNets, err = util.ParseSubnets(static.Filtering.AllowlistedIPs)
	if err != nil {
		return fmt.Errorf("invalid Filtering.AllowlistedIPs: %w", err)
	}

	running.Version, err = semver.ParseTolerant(static.Version)
	if err != nil {
		// builds without version information still run
		running.Version = semver.Version{}
	}
	return nil
}

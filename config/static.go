package config

import (
	"path/filepath"
	"reflect"
	"time"

	"github.com/creasty/defaults"
	yaml "gopkg.in/yaml.v2"
)

type (
	//StaticCfg is the container for other static config sections
	StaticCfg struct {
		Log             LogStaticCfg         `yaml:"LogConfig"`
		MongoDB         MongoDBStaticCfg     `yaml:"MongoDB"`
		NATS            NATSStaticCfg        `yaml:"NATS"`
		Metrics         MetricsStaticCfg     `yaml:"Metrics"`
		Filtering       FilteringStaticCfg   `yaml:"Filtering"`
		Beacon          BeaconStaticCfg      `yaml:"Beacon"`
		DNS             DNSStaticCfg         `yaml:"DNS"`
		Alerts          AlertStaticCfg       `yaml:"Alerts"`
		LongConnections LongConnStaticCfg    `yaml:"LongConnections"`
		Correlation     CorrelationStaticCfg `yaml:"Correlation"`
		SourceFile      string               `yaml:"-"`
		Version         string               `yaml:"-"`
		ExactVersion    string               `yaml:"-"`
	}

	//LogStaticCfg contains the configuration for logging
	LogStaticCfg struct {
		LogLevel  int    `yaml:"LogLevel" default:"2"`
		LogPath   string `yaml:"LogPath" default:"/var/lib/threatfuse/logs"`
		LogToFile bool   `yaml:"LogToFile" default:"false"`
		LogToDB   bool   `yaml:"LogToDB" default:"false"`
	}

	//MongoDBStaticCfg contains the means for connecting to MongoDB. Profiles
	//are only written when ConnectionString is set.
	MongoDBStaticCfg struct {
		ConnectionString  string       `yaml:"ConnectionString"`
		AuthMechanism     string       `yaml:"AuthenticationMechanism"`
		SocketTimeout     int          `yaml:"SocketTimeout" default:"2"`
		TLS               TLSStaticCfg `yaml:"TLS"`
		Database          string       `yaml:"Database" default:"threatfuse"`
		ProfileCollection string       `yaml:"ProfileCollection" default:"host_profiles"`
		LogCollection     string       `yaml:"LogCollection" default:"logs"`
	}

	//TLSStaticCfg contains the means for connecting to MongoDB over TLS
	TLSStaticCfg struct {
		Enabled           bool   `yaml:"Enable" default:"false"`
		VerifyCertificate bool   `yaml:"VerifyCertificate" default:"false"`
		CAFile            string `yaml:"CAFile"`
	}

	//NATSStaticCfg controls publishing of host profiles
	NATSStaticCfg struct {
		Enabled  bool   `yaml:"Enabled" default:"false"`
		URL      string `yaml:"URL" default:"nats://127.0.0.1:4222"`
		Subject  string `yaml:"Subject" default:"threatfuse.profiles"`
		MinLevel string `yaml:"MinLevel" default:"medium"`
	}

	//MetricsStaticCfg controls the prometheus textfile export
	MetricsStaticCfg struct {
		Enabled      bool   `yaml:"Enabled" default:"false"`
		TextfilePath string `yaml:"TextfilePath" default:"/var/lib/threatfuse/threatfuse.prom"`
	}

	//FilteringStaticCfg holds the address and domain lists shared by the detectors
	FilteringStaticCfg struct {
		InternalSubnets    []string `yaml:"InternalSubnets" default:"[\"10.0.0.0/8\",\"172.16.0.0/12\",\"192.168.0.0/16\"]"`
		AllowlistedIPs     []string `yaml:"AllowlistedIPs"`
		NeverIncludeDomain []string `yaml:"NeverIncludeDomain"`
	}

	//BeaconStaticCfg is used to control the beaconing analysis module
	BeaconStaticCfg struct {
		Enabled            bool    `yaml:"Enabled" default:"true"`
		MinConnections     int     `yaml:"MinConnections" default:"10"`
		MinWindowSeconds   float64 `yaml:"MinWindowSeconds" default:"300"`
		MaxJitterPct       float64 `yaml:"MaxJitterPct" default:"30"`
		MinScore           float64 `yaml:"MinScore" default:"50"`
		IncludeAllowlisted bool    `yaml:"IncludeAllowlisted" default:"false"`
	}

	//DNSStaticCfg is used to control the DNS threat analysis module
	DNSStaticCfg struct {
		Enabled               bool    `yaml:"Enabled" default:"true"`
		MinTunnelQueries      int     `yaml:"MinTunnelQueries" default:"10"`
		MinTunnelScore        float64 `yaml:"MinTunnelScore" default:"40"`
		MinDGALength          int     `yaml:"MinDGALength" default:"6"`
		MinDGAScore           float64 `yaml:"MinDGAScore" default:"65"`
		FastFluxMinIPs        int     `yaml:"FastFluxMinIPs" default:"3"`
		FastFluxMinHours      float64 `yaml:"FastFluxMinHours" default:"1"`
		MinFastFluxScore      float64 `yaml:"MinFastFluxScore" default:"40"`
		NXDomainMinQueries    int     `yaml:"NXDomainMinQueries" default:"20"`
		NXDomainRatio         float64 `yaml:"NXDomainRatio" default:"0.5"`
		UnusualTypeMinQueries int     `yaml:"UnusualTypeMinQueries" default:"10"`
		UnusualTypeRatio      float64 `yaml:"UnusualTypeRatio" default:"0.3"`
		MaxQueriesPerMinute   int     `yaml:"MaxQueriesPerMinute" default:"60"`
		DomainCacheSize       int     `yaml:"DomainCacheSize" default:"65536"`
	}

	//AlertStaticCfg is used to control the alert scoring module
	AlertStaticCfg struct {
		Enabled bool `yaml:"Enabled" default:"true"`
		// FrequencyWindow of zero counts duplicates over the whole data set
		FrequencyWindow    time.Duration `yaml:"FrequencyWindow" default:"0s"`
		ScanMinAlerts      int           `yaml:"ScanMinAlerts" default:"5"`
		ScanMinTargets     int           `yaml:"ScanMinTargets" default:"3"`
		ChainMinAlerts     int           `yaml:"ChainMinAlerts" default:"3"`
		ChainMinTechniques int           `yaml:"ChainMinTechniques" default:"3"`
	}

	//LongConnStaticCfg is used to control the long connection module
	LongConnStaticCfg struct {
		Enabled            bool    `yaml:"Enabled" default:"true"`
		MinDurationSeconds float64 `yaml:"MinDurationSeconds" default:"60"`
		MinScore           float64 `yaml:"MinScore" default:"30"`
	}

	//CorrelationStaticCfg is used to control the correlation engine
	CorrelationStaticCfg struct {
		BoostFactor     float64 `yaml:"BoostFactor" default:"1.15"`
		MinClusterHosts int     `yaml:"MinClusterHosts" default:"2"`
		TopN            int     `yaml:"TopN" default:"10"`
	}
)

// initStaticConfig fills in the default values of every section
func initStaticConfig(config *StaticCfg) error {
	if err := defaults.Set(config); err != nil {
		return err
	}
	config.Version = Version
	config.ExactVersion = ExactVersion
	return nil
}

// parseStaticConfig parses the yaml contents of a config file over the
// values already present in config
func parseStaticConfig(cfgFile []byte, config *StaticCfg) error {
	err := yaml.Unmarshal(cfgFile, config)
	if err != nil {
		return err
	}

	// expand env variables, config is a pointer
	// so we have to call elem on the reflect value
	expandConfig(reflect.ValueOf(config).Elem())

	// clean all filepaths
	if config.Log.LogPath != "" {
		config.Log.LogPath = filepath.Clean(config.Log.LogPath)
	}
	if config.Metrics.TextfilePath != "" {
		config.Metrics.TextfilePath = filepath.Clean(config.Metrics.TextfilePath)
	}

	// grab the version constants set by the build process
	config.Version = Version
	config.ExactVersion = ExactVersion

	return nil
}

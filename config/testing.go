package config

// LoadTestingConfig returns a config built purely from the defaults, with
// logging kept at the debug level and every external sink disabled
func LoadTestingConfig() (*Config, error) {
	config := &Config{}

	if err := initStaticConfig(&config.S); err != nil {
		return nil, err
	}

	config.S.Log.LogLevel = 3
	config.S.Version = "v0.0.0+testing"
	config.S.ExactVersion = "v0.0.0+testing"

	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}
	return config, nil
}

package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
)

// Version is filled at compile time with the git version of threatfuse
var Version = "undefined"

// ExactVersion is filled at compile time with the exact git describe output
var ExactVersion = "undefined"

// defaultConfigPaths are tried in order when no config file is specified
var defaultConfigPaths = []string{
	"~/.threatfuse/config.yaml",
	"/etc/threatfuse/config.yaml",
}

type (
	//Config holds the configuration for the running system
	Config struct {
		R RunningCfg
		S StaticCfg
	}
)

// LoadConfig initializes a Config from the defaults, the config file at
// cfgPath (or the first default location that exists), and the derived
// running configuration
func LoadConfig(cfgPath string) (*Config, error) {
	config := &Config{}

	// Initialize static config to the default values
	if err := initStaticConfig(&config.S); err != nil {
		return nil, err
	}

	path, err := resolveConfigPath(cfgPath)
	if err != nil {
		return nil, err
	}

	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := parseStaticConfig(contents, &config.S); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		config.S.SourceFile = path
	}

	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}
	return config, nil
}

// resolveConfigPath returns the explicit path if set, otherwise the first
// existing default path. An empty result means defaults only.
func resolveConfigPath(cfgPath string) (string, error) {
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err != nil {
			return "", fmt.Errorf("config file %s is not accessible: %w", cfgPath, err)
		}
		return cfgPath, nil
	}

	for _, candidate := range defaultConfigPaths {
		candidate = expandHome(candidate)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return filepath.Join(usr.HomeDir, path[2:])
}

// expandConfig expands environment variables in config strings
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		if !f.CanSet() {
			continue
		}
		// process sub configs
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		} else if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
			strs := f.Interface().([]string)
			for i, str := range strs {
				strs[i] = os.ExpandEnv(str)
			}
			f.Set(reflect.ValueOf(strs))
		}
	}
}

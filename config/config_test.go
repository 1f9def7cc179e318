package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/activecm/mgosec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	InertString       string
	ExpandString      string
	ExpandStringSlice []string
	Inner             TestStructInner
}

type TestStructInner struct {
	InertString       string
	ExpandString      string
	ExpandStringSlice []string
}

func TestExpandConfig(t *testing.T) {
	inert := "DO_NOT_CHANGE"
	outerEnvVarName := "_OUTER_ENV_VAR"
	outerEnvVarValue := "OUTER_VALUE"
	innerEnvVarName := "_INNER_ENV_VAR"
	innerEnvVarValue := "INNER_VALUE"
	test := TestStruct{
		InertString:       inert,
		ExpandString:      "$" + outerEnvVarName,
		ExpandStringSlice: []string{"$" + outerEnvVarName, inert},
		Inner: TestStructInner{
			InertString:       inert,
			ExpandString:      "$" + innerEnvVarName,
			ExpandStringSlice: []string{"$" + innerEnvVarName, inert},
		},
	}

	t.Setenv(outerEnvVarName, outerEnvVarValue)
	t.Setenv(innerEnvVarName, innerEnvVarValue)
	expandConfig(reflect.ValueOf(&test).Elem())

	assert.Equal(t, inert, test.InertString)
	assert.Equal(t, outerEnvVarValue, test.ExpandString)
	assert.Equal(t, []string{outerEnvVarValue, inert}, test.ExpandStringSlice)
	assert.Equal(t, innerEnvVarValue, test.Inner.ExpandString)
	assert.Equal(t, []string{innerEnvVarValue, inert}, test.Inner.ExpandStringSlice)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
MongoDB:
    SocketTimeout: 3
Filtering:
    AllowlistedIPs: ["9.9.9.9"]
NATS:
    Subject: $PROFILE_SUBJECT
Beacon:
    MinScore: 70
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	t.Setenv("PROFILE_SUBJECT", "soc.hosts")

	conf, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, conf.S.SourceFile)
	assert.Equal(t, 70.0, conf.S.Beacon.MinScore)
	assert.Equal(t, 3*time.Hour, conf.R.MongoDB.SocketTimeout)
	assert.Equal(t, "soc.hosts", conf.S.NATS.Subject)
	assert.Equal(t, mgosec.None, conf.R.MongoDB.AuthMechanismParsed)
	require.Len(t, conf.R.Filtering.AllowlistedNets, 1)
	assert.Equal(t, "9.9.9.9/32", conf.R.Filtering.AllowlistedNets[0].String())
	assert.Len(t, conf.R.Filtering.InternalSubnets, 3)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBadSubnet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Filtering:\n    InternalSubnets: [\"nope\"]\n"), 0600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadTestingConfig(t *testing.T) {
	conf, err := LoadTestingConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, conf.S.Log.LogLevel)
	assert.Equal(t, "", conf.S.MongoDB.ConnectionString)
	assert.False(t, conf.S.NATS.Enabled)
	assert.Equal(t, uint64(0), conf.R.Version.Major)
	assert.Equal(t, mgosec.None, conf.R.MongoDB.AuthMechanismParsed)
}

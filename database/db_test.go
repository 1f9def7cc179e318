package database

import (
	"testing"

	"github.com/activecm/threatfuse/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	testCases := []struct {
		version string
		ok      bool
	}{
		{"4.2.0", true},
		{"4.4.29", true},
		{"7.0.14", true},
		{"4.0.28", false},
		{"8.0.0", false},
		{"v5.0.3-rc1", true},
		{"not-a-version", false},
	}

	for _, test := range testCases {
		err := checkVersion(test.version)
		if test.ok {
			assert.NoError(t, err, test.version)
		} else {
			assert.Error(t, err, test.version)
		}
	}
}

func TestNewDBRequiresConnectionString(t *testing.T) {
	conf, err := config.LoadTestingConfig()
	require.NoError(t, err)
	conf.S.MongoDB.ConnectionString = ""

	db, err := NewDB(conf, nil)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

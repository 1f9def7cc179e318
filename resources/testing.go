package resources

import (
	"os"
	"testing"

	"github.com/activecm/threatfuse/config"
)

// IntegrationURIEnv names the variable holding the MongoDB URI used by
// integration tests
const IntegrationURIEnv = "THREATFUSE_TEST_MONGODB"

// InitTestResources creates a resource bundle from the testing config with
// no database
func InitTestResources(t *testing.T) *Resources {
	t.Helper()

	conf, err := config.LoadTestingConfig()
	if err != nil {
		t.Fatal(err)
	}
	conf.S.MongoDB.ConnectionString = ""

	res, err := fromConfig(conf, false)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

// InitIntegrationTestingResources creates a default testing
// resource bundle for use with integration testing.
// The MongoDB server is contacted via the URI held in THREATFUSE_TEST_MONGODB.
func InitIntegrationTestingResources(t *testing.T) *Resources {
	t.Helper()
	if testing.Short() {
		t.Skip()
	}

	mongoURI := os.Getenv(IntegrationURIEnv)
	if mongoURI == "" {
		t.Skipf("%s is required to run threatfuse integration tests", IntegrationURIEnv)
	}

	conf, err := config.LoadTestingConfig()
	if err != nil {
		t.Fatal(err)
	}
	conf.S.MongoDB.ConnectionString = mongoURI
	conf.S.MongoDB.Database = "threatfuse_test"

	res, err := fromConfig(conf, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := res.DB.Session.DB(res.DB.SelectedDB()).DropDatabase(); err != nil {
			t.Log(err)
		}
		res.Close()
	})
	return res
}

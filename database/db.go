package database

import (
	"errors"
	"fmt"

	"github.com/activecm/mgosec"
	"github.com/activecm/threatfuse/config"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"
)

// MinMongoDBVersion is the lower, inclusive bound on the
// versions of MongoDB compatible with threatfuse
var MinMongoDBVersion = semver.Version{
	Major: 4,
	Minor: 2,
	Patch: 0,
}

// MaxMongoDBVersion is the upper, exclusive bound on the
// versions of MongoDB compatible with threatfuse
var MaxMongoDBVersion = semver.Version{
	Major: 8,
	Minor: 0,
	Patch: 0,
}

// ErrNotConfigured is returned when no MongoDB connection string is set
var ErrNotConfigured = errors.New("no MongoDB connection string configured")

// mongo error code for NamespaceExists
const codeNamespaceExists = 48

// DB is the workhorse container for messing with the database
type DB struct {
	Session  *mgo.Session
	log      *log.Logger
	selected string
}

// NewDB connects to the configured MongoDB server and selects the
// threatfuse database
func NewDB(conf *config.Config, logger *log.Logger) (*DB, error) {
	if conf.S.MongoDB.ConnectionString == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	session, err := connectToMongoDB(conf)
	if err != nil {
		return nil, err
	}
	session.SetSocketTimeout(conf.R.MongoDB.SocketTimeout)
	session.SetSyncTimeout(conf.R.MongoDB.SocketTimeout)
	session.SetCursorTimeout(0)

	return &DB{
		Session:  session,
		log:      logger,
		selected: conf.S.MongoDB.Database,
	}, nil
}

// connectToMongoDB connects to MongoDB possibly with authentication and TLS
func connectToMongoDB(conf *config.Config) (*mgo.Session, error) {
	connString := conf.S.MongoDB.ConnectionString
	authMechanism := conf.R.MongoDB.AuthMechanismParsed
	tlsConfig := conf.R.MongoDB.TLS.TLSConfig

	var sess *mgo.Session
	var err error
	if conf.S.MongoDB.TLS.Enabled {
		sess, err = mgosec.Dial(connString, authMechanism, tlsConfig)
	} else {
		sess, err = mgosec.DialInsecure(connString, authMechanism)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial MongoDB: %w", err)
	}

	buildInfo, err := sess.BuildInfo()
	if err != nil {
		sess.Close()
		return nil, err
	}

	if err := checkVersion(buildInfo.Version); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// checkVersion ensures the server version lies within
// [MinMongoDBVersion, MaxMongoDBVersion)
func checkVersion(version string) error {
	semVersion, err := semver.ParseTolerant(version)
	if err != nil {
		return fmt.Errorf("could not parse MongoDB version %q: %w", version, err)
	}

	if !(semVersion.GE(MinMongoDBVersion) && semVersion.LT(MaxMongoDBVersion)) {
		return fmt.Errorf(
			"unsupported version of MongoDB. %s not within [%s, %s)",
			semVersion.String(),
			MinMongoDBVersion.String(),
			MaxMongoDBVersion.String(),
		)
	}
	return nil
}

// SelectedDB returns the name of the database threatfuse writes to
func (d *DB) SelectedDB() string {
	return d.selected
}

// CollectionExists returns true if collection exists in the selected database
func (d *DB) CollectionExists(table string) bool {
	ssn := d.Session.Copy()
	defer ssn.Close()
	coll, err := ssn.DB(d.selected).CollectionNames()
	if err != nil {
		d.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed collection name lookup")
		return false
	}
	for _, name := range coll {
		if name == table {
			return true
		}
	}
	return false
}

// EnsureCollection creates the named collection if it is missing and
// builds the given indexes on it
func (d *DB) EnsureCollection(name string, indexes []mgo.Index) error {
	session := d.Session.Copy()
	defer session.Close()

	d.log.Debug("Building collection: ", name)

	collection := session.DB(d.selected).C(name)
	err := collection.Create(&mgo.CollectionInfo{})
	if err != nil && !isNamespaceExists(err) {
		return err
	}

	for _, index := range indexes {
		if err := collection.EnsureIndex(index); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying session
func (d *DB) Close() {
	d.Session.Close()
}

func isNamespaceExists(err error) bool {
	var queryErr *mgo.QueryError
	return errors.As(err, &queryErr) && queryErr.Code == codeNamespaceExists
}

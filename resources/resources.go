package resources

import (
	"errors"
	"fmt"
	"os"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/database"
	log "github.com/sirupsen/logrus"
)

type (
	// Resources provides a data structure for passing system Resources
	Resources struct {
		Config *config.Config
		Log    *log.Logger
		// DB is nil when no MongoDB connection string is configured
		DB *database.DB
	}
)

// InitResources grabs the configuration file and intitializes the configuration data
// returning a *Resources object which has all of the necessary configuration information
func InitResources(userConfig string, verbose bool) *Resources {
	res, err := NewResources(userConfig, verbose)
	if err != nil {
		fmt.Fprintf(os.Stdout, "Failed to initialize: %s\n", err.Error())
		os.Exit(-1)
	}
	return res
}

// NewResources loads the config at userConfig and builds the logger and,
// when configured, the database connection
func NewResources(userConfig string, verbose bool) (*Resources, error) {
	conf, err := config.LoadConfig(userConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return fromConfig(conf, verbose)
}

func fromConfig(conf *config.Config, verbose bool) (*Resources, error) {
	// Fire up the logging system
	logger := initLogger(&conf.S.Log, verbose)

	if conf.S.Log.LogToFile {
		logDir, err := addFileLogger(logger, conf.S.Log.LogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open log directory: %w", err)
		}
		logger.WithField("path", logDir).Debug("Logging to files")
	}

	// Profiles are only persisted when MongoDB is configured
	db, err := database.NewDB(conf, logger)
	if errors.Is(err, database.ErrNotConfigured) {
		db = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	//Begin logging to the database
	if db != nil && conf.S.Log.LogToDB {
		if err := addMongoLogger(logger, db, conf.S.MongoDB.LogCollection); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set up database logging: %w", err)
		}
	}

	//bundle up the system resources
	return &Resources{
		Config: conf,
		Log:    logger,
		DB:     db,
	}, nil
}

// Close releases the database connection, if any
func (r *Resources) Close() {
	if r.DB != nil {
		r.DB.Close()
	}
}

package resources

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/activecm/mgorus"
	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/database"
	"github.com/activecm/threatfuse/util"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// initLogger creates the logger. Output to stdout is discarded unless
// verbose is set; hooks carry the rest.
func initLogger(logConfig *config.LogStaticCfg, verbose bool) *log.Logger {
	var logs = &log.Logger{}

	logs.Formatter = new(log.TextFormatter)

	logs.Out = io.Discard
	if verbose {
		logs.Out = os.Stderr
	}
	logs.Hooks = make(log.LevelHooks)
	logs.Level = logLevel(logConfig.LogLevel)
	return logs
}

// logLevel maps the configured 0-3 level onto logrus levels
func logLevel(level int) log.Level {
	switch {
	case level >= 3:
		return log.DebugLevel
	case level == 2:
		return log.InfoLevel
	case level == 1:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}

// addFileLogger writes each level to its own file under a timestamped
// directory in logPath
func addFileLogger(logger *log.Logger, logPath string) (string, error) {
	logPath = path.Join(logPath, time.Now().Format(util.TimeFormat))
	_, err := os.Stat(logPath)
	if err != nil && os.IsNotExist(err) {
		err = os.MkdirAll(logPath, 0755)
		if err != nil {
			return "", err
		}
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: path.Join(logPath, "debug.log"),
		log.InfoLevel:  path.Join(logPath, "info.log"),
		log.WarnLevel:  path.Join(logPath, "warn.log"),
		log.ErrorLevel: path.Join(logPath, "error.log"),
		log.FatalLevel: path.Join(logPath, "fatal.log"),
		log.PanicLevel: path.Join(logPath, "panic.log"),
	}, nil))
	return logPath, nil
}

// addMongoLogger sends log entries to a collection of the threatfuse database
func addMongoLogger(logger *log.Logger, db *database.DB, collection string) error {
	if err := db.EnsureCollection(collection, nil); err != nil {
		return err
	}
	logger.Hooks.Add(
		mgorus.NewHookerFromSession(
			db.Session, db.SelectedDB(), collection,
		),
	)
	return nil
}

package commands

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/activecm/threatfuse/pkg/store"
	"github.com/activecm/threatfuse/resources"
	"github.com/pbnjay/memory"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

// maxInputShare is the largest portion of physical memory the raw telemetry
// may take up, since the whole window is held in memory
const maxInputShare = 0.5

var errNoInput = errors.New("specify at least one telemetry file, or - for standard input")

// openCommand loads the resources and the telemetry files named by the
// command's arguments. Close the resources when done.
func openCommand(c *cli.Context) (*resources.Resources, *store.Store, error) {
	res, err := resources.NewResources(c.String("config"), c.Bool("verbose"))
	if err != nil {
		return nil, nil, cli.NewExitError(err.Error(), -1)
	}

	var progress io.Writer
	if c.Bool("verbose") {
		progress = errWriter(c)
	}
	s, err := loadStore(res, c.Args(), progress)
	if err != nil {
		res.Close()
		return nil, nil, cli.NewExitError(err.Error(), -1)
	}
	return res, s, nil
}

// loadStore reads every telemetry file into a new store. A progress bar is
// drawn on progress when it is non-nil.
func loadStore(res *resources.Resources, paths []string, progress io.Writer) (*store.Store, error) {
	if len(paths) == 0 {
		return nil, errNoInput
	}

	size, err := inputSize(paths)
	if err != nil {
		return nil, err
	}
	if err := checkInputSize(size, memory.TotalMemory()); err != nil {
		return nil, err
	}

	var p *mpb.Progress
	var bar *mpb.Bar
	if progress != nil {
		p = mpb.New(mpb.WithWidth(20), mpb.WithOutput(progress))
		bar = p.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("\t[-] Loading telemetry:", decor.WC{W: 30, C: decor.DidentRight}),
				decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}

	s := store.New()
	var loadErr error
	for _, path := range paths {
		start := time.Now()
		if loadErr == nil {
			loadErr = loadFile(res.Log, s, path)
		}
		if bar != nil {
			bar.IncrBy(1, time.Since(start))
		}
	}
	if p != nil {
		p.Wait()
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return s, nil
}

func loadFile(logger *log.Logger, s *store.Store, path string) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		r = file
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	stats, err := store.Load(r, s, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	logger.WithFields(log.Fields{
		"file":        path,
		"lines":       stats.Lines,
		"connections": stats.Counts.Connections,
		"dns_queries": stats.Counts.DNSQueries,
		"alerts":      stats.Counts.Alerts,
		"skipped":     stats.Skipped,
	}).Info("Loaded telemetry file")
	return nil
}

// inputSize sums the size of the named files. Standard input counts as empty.
func inputSize(paths []string) (uint64, error) {
	var total uint64
	for _, path := range paths {
		if path == "-" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			return 0, fmt.Errorf("%s is a directory", path)
		}
		total += uint64(info.Size())
	}
	return total, nil
}

// checkInputSize refuses inputs that would not fit in memory. A total of
// zero means the amount of memory is unknown.
func checkInputSize(inputBytes, totalMemory uint64) error {
	if totalMemory == 0 {
		return nil
	}
	if float64(inputBytes) > float64(totalMemory)*maxInputShare {
		return fmt.Errorf(
			"telemetry input of %d MB exceeds half of the %d MB of system memory",
			inputBytes>>20, totalMemory>>20,
		)
	}
	return nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

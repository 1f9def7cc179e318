package commands

import (
	"fmt"
	"io"

	"github.com/activecm/threatfuse/database"
	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/metrics"
	"github.com/activecm/threatfuse/pkg/publish"
	"github.com/activecm/threatfuse/resources"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func init() {
	analyzeCommand := cli.Command{
		Name:      "analyze",
		Usage:     "Run every detector over the telemetry files and correlate the results into host threat profiles",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			verboseFlag,
			cli.IntFlag{
				Name:  "top, t",
				Usage: "Print the `N` highest rated hosts, defaults to Correlation.TopN",
			},
			cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full analysis as JSON",
			},
		},
		Action: analyze,
	}

	bootstrapCommands(analyzeCommand)
}

func analyze(c *cli.Context) error {
	res, s, err := openCommand(c)
	if err != nil {
		return err
	}
	defer res.Close()

	var m *metrics.Metrics
	var extra []correlate.Recorder
	if res.Config.S.Metrics.Enabled {
		m = metrics.New()
		extra = append(extra, m)
	}

	var progress io.Writer
	if c.Bool("verbose") {
		progress = errWriter(c)
	}
	analysis, err := runEngine(res, s, progress, extra...)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	// sinks are best effort; the first failure is reported after the output
	var sinkErr error
	record := func(err error) {
		if err != nil && sinkErr == nil {
			sinkErr = err
		}
	}
	record(persistAnalysis(res, analysis))
	record(publishAnalysis(res, analysis, m))
	if m != nil {
		record(m.WriteTextfile(res.Config.S.Metrics.TextfilePath))
	}

	out := c.App.Writer
	if c.Bool("json") {
		err = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out).Encode(analysis)
	} else {
		top := c.Int("top")
		if top <= 0 {
			top = res.Config.S.Correlation.TopN
		}
		if c.Bool("human-readable") {
			fmt.Fprintf(out, "Run %s: %d connections, %d DNS queries, %d alerts, %d hosts profiled\n",
				analysis.RunID, analysis.Records.Connections, analysis.Records.DNSQueries,
				analysis.Records.Alerts, len(analysis.Profiles))
			for _, failure := range analysis.Failures {
				fmt.Fprintf(out, "Warning: %s\n", failure.Error())
			}
			err = showProfilesHuman(out, analysis.Profiles.Top(top))
		} else {
			err = showProfilesCsv(out, analysis.Profiles.Top(top))
		}
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	if sinkErr != nil {
		return cli.NewExitError(sinkErr.Error(), -1)
	}
	return nil
}

// persistAnalysis writes the profiles and the run summary to MongoDB when a
// database is configured
func persistAnalysis(res *resources.Resources, analysis *correlate.Analysis) error {
	if res.DB == nil {
		return nil
	}
	writer := database.NewProfileWriter(res.DB, res.Config, res.Log)
	if err := writer.EnsureCollections(); err != nil {
		return err
	}
	if _, err := writer.Write(analysis.RunID, analysis.Profiles); err != nil {
		return err
	}
	return writer.RecordRun(analysis)
}

// publishAnalysis sends the profiles to NATS when publishing is enabled
func publishAnalysis(res *resources.Resources, analysis *correlate.Analysis, m *metrics.Metrics) error {
	if !res.Config.S.NATS.Enabled {
		return nil
	}
	publisher, conn, err := publish.Connect(res.Config, res.Log)
	if err != nil {
		return err
	}
	defer conn.Close()
	if m != nil {
		publisher.SetObserver(m)
	}

	_, err = publisher.Publish(analysis.RunID, analysis.Profiles)
	if flushErr := conn.Flush(); flushErr != nil {
		res.Log.WithFields(log.Fields{
			"error": flushErr.Error(),
		}).Error("Failed to flush NATS connection")
		if err == nil {
			err = flushErr
		}
	}
	return err
}

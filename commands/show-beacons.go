package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/activecm/threatfuse/pkg/beacon"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-beacons",
		Usage:     "Print hosts which show signs of C2 software",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			limitFlag,
			noLimitFlag,
			verboseFlag,
		},
		Action: showBeacons,
	}

	bootstrapCommands(command)
}

func showBeacons(c *cli.Context) error {
	res, s, err := openCommand(c)
	if err != nil {
		return err
	}
	defer res.Close()

	detector := beacon.NewDetector(
		beacon.ConfigFrom(res.Config),
		beacon.NewDefaultAllowlist(res.Config.R.Filtering.AllowlistedNets),
		res.Log,
	)
	data := detector.Analyze(s)
	if len(data) == 0 {
		return cli.NewExitError("No results were found", -1)
	}
	data = data[:limit(len(data), c.Int("limit"), c.Bool("no-limit"))]

	if c.Bool("human-readable") {
		err = showBeaconReport(c.App.Writer, data)
	} else {
		err = showBeaconCsv(c.App.Writer, data)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

func tuple(port int, proto, service string) string {
	if service == "" {
		service = "-"
	}
	return fmt.Sprintf("%d:%s:%s", port, proto, service)
}

func beaconRow(d *beacon.Finding) []string {
	return []string{
		f(d.Score()), d.Key.SrcIP, d.Key.DstIP,
		tuple(d.Key.DstPort, d.Key.Proto, d.Key.Service),
		i(int64(d.Count)), f(d.Size.Mean), f(d.Interval.Mean), f(d.Interval.JitterPct),
		seconds(d.SpanSeconds), f(d.Components.Regularity), f(d.Components.Size),
		list(d.Techniques()),
	}
}

func showBeaconReport(w io.Writer, data []*beacon.Finding) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Score", "Source IP", "Destination IP",
		"Port:Proto:Service", "Connections", "Avg. Bytes", "Avg. Intvl",
		"Jitter %", "Span", "Intvl Score", "Size Score", "Techniques"})

	for _, d := range data {
		row := beaconRow(d)
		row[11] = strings.Join(d.Techniques(), ",\n")
		table.Append(row)
	}
	table.Render()
	return nil
}

func showBeaconCsv(w io.Writer, data []*beacon.Finding) error {
	csvWriter := csv.NewWriter(w)
	headers := []string{
		"Score", "Source IP", "Destination IP", "Port:Proto:Service",
		"Connections", "Avg Bytes", "Avg Interval", "Jitter Pct", "Span",
		"Interval Score", "Size Score", "Techniques",
	}
	csvWriter.Write(headers)

	for _, d := range data {
		csvWriter.Write(beaconRow(d))
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

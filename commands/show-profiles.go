package commands

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-profiles",
		Usage:     "Print the threat profile of every host, highest score first",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			limitFlag,
			noLimitFlag,
			verboseFlag,
			cli.StringFlag{
				Name:  "min-level",
				Usage: "Only print hosts rated `LEVEL` or worse",
				Value: string(finding.LevelInfo),
			},
		},
		Action: func(c *cli.Context) error {
			minLevel, err := finding.ParseLevel(c.String("min-level"))
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}

			res, s, err := openCommand(c)
			if err != nil {
				return err
			}
			defer res.Close()

			analysis, err := runEngine(res, s, nil)
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}

			data := analysis.Profiles.AtLeast(minLevel)
			if len(data) == 0 {
				return cli.NewExitError("No results were found", -1)
			}
			data = data[:limit(len(data), c.Int("limit"), c.Bool("no-limit"))]

			if c.Bool("human-readable") {
				err = showProfilesHuman(c.App.Writer, data)
			} else {
				err = showProfilesCsv(c.App.Writer, data)
			}
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			return nil
		},
	}

	bootstrapCommands(command)
}

func profileRow(p *correlate.Profile) []string {
	return []string{
		f(p.Score * 100), p.IP, string(p.ThreatLevel), f(p.Confidence),
		i(int64(p.BeaconCount)), i(int64(p.DNSThreatCount)),
		i(int64(p.AlertCount)), i(int64(p.LongConnCount)),
		list(p.Techniques), ts(p.FirstSeen), ts(p.LastSeen),
	}
}

func showProfilesHuman(w io.Writer, data []*correlate.Profile) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Score", "Host", "Threat Level", "Confidence",
		"Beacons", "DNS Threats", "Alerts", "Long Conns", "Techniques",
		"First Seen", "Last Seen"})
	for _, p := range data {
		row := profileRow(p)
		row[8] = strings.Join(p.Techniques, ",\n")
		table.Append(row)
	}
	table.Render()
	return nil
}

func showProfilesCsv(w io.Writer, data []*correlate.Profile) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Score", "Host", "Threat Level", "Confidence",
		"Beacons", "DNS Threats", "Alerts", "Long Connections", "Techniques",
		"First Seen", "Last Seen"})
	for _, p := range data {
		csvWriter.Write(profileRow(p))
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

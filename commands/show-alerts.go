package commands

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/activecm/threatfuse/pkg/alertscore"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-alerts",
		Usage:     "Print scored IDS alerts, or the attack patterns built from them",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			limitFlag,
			noLimitFlag,
			verboseFlag,
			cli.BoolFlag{
				Name:  "patterns",
				Usage: "Print scanning and exploit chain patterns instead of single alerts",
			},
		},
		Action: showAlerts,
	}

	bootstrapCommands(command)
}

func showAlerts(c *cli.Context) error {
	res, s, err := openCommand(c)
	if err != nil {
		return err
	}
	defer res.Close()

	report := alertscore.NewScorer(alertscore.ConfigFrom(res.Config), res.Log).Analyze(s)
	human := c.Bool("human-readable")

	if c.Bool("patterns") {
		data := report.Patterns
		if len(data) == 0 {
			return cli.NewExitError("No results were found", -1)
		}
		data = data[:limit(len(data), c.Int("limit"), c.Bool("no-limit"))]
		if human {
			err = showPatternsHuman(c.App.Writer, data)
		} else {
			err = showPatternsCsv(c.App.Writer, data)
		}
	} else {
		data := report.Findings
		if len(data) == 0 {
			return cli.NewExitError("No results were found", -1)
		}
		data = data[:limit(len(data), c.Int("limit"), c.Bool("no-limit"))]
		if human {
			err = showAlertsHuman(c.App.Writer, data)
		} else {
			err = showAlertsCsv(c.App.Writer, data)
		}
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

func alertRow(d *alertscore.Finding) []string {
	return []string{
		f(d.Score()), string(d.ThreatLevel), ts(d.Alert.Timestamp),
		d.Alert.SrcIP, d.Alert.DstIP, i(int64(d.Alert.DstPort)),
		d.Alert.Signature, d.Alert.Category, i(int64(d.Alert.Severity)),
		i(int64(d.Repeats)), list(d.Techniques()),
	}
}

var alertHeaders = []string{"Score", "Threat Level", "Timestamp", "Source IP",
	"Destination IP", "Port", "Signature", "Category", "Severity", "Repeats",
	"Techniques"}

func showAlertsHuman(w io.Writer, data []*alertscore.Finding) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(alertHeaders)
	for _, d := range data {
		row := alertRow(d)
		row[10] = strings.Join(d.Techniques(), ",\n")
		table.Append(row)
	}
	table.Render()
	return nil
}

func showAlertsCsv(w io.Writer, data []*alertscore.Finding) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write(alertHeaders)
	for _, d := range data {
		csvWriter.Write(alertRow(d))
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func patternRow(p *alertscore.Pattern) []string {
	return []string{
		f(p.Score()), p.Type, p.IP, i(int64(p.AlertCount)),
		list(p.Peers), list(p.Techniques()), p.Narrative,
	}
}

func showPatternsHuman(w io.Writer, data []*alertscore.Pattern) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Score", "Pattern", "Host", "Alerts", "Peers", "Techniques", "Narrative"})
	for _, p := range data {
		row := patternRow(p)
		row[4] = strings.Join(p.Peers, ",\n")
		row[5] = strings.Join(p.Techniques(), ",\n")
		table.Append(row)
	}
	table.Render()
	return nil
}

func showPatternsCsv(w io.Writer, data []*alertscore.Pattern) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Score", "Pattern", "Host", "Alerts", "Peers", "Techniques", "Narrative"})
	for _, p := range data {
		csvWriter.Write(patternRow(p))
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

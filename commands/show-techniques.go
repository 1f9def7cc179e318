package commands

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/activecm/threatfuse/pkg/correlate"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-techniques",
		Usage:     "Print every detected technique with its tactics and the hosts it was seen on",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			verboseFlag,
		},
		Action: func(c *cli.Context) error {
			res, s, err := openCommand(c)
			if err != nil {
				return err
			}
			defer res.Close()

			analysis, err := runEngine(res, s, nil)
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}

			overview := analysis.Profiles.Overview()
			if len(overview.Techniques) == 0 {
				return cli.NewExitError("No techniques were detected", -1)
			}

			if c.Bool("human-readable") {
				err = showTechniquesHuman(c.App.Writer, overview)
			} else {
				err = showTechniquesCsv(c.App.Writer, overview)
			}
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			return nil
		},
	}

	bootstrapCommands(command)
}

// techniqueRows orders techniques by detection count, then id
func techniqueRows(o correlate.Overview) [][]string {
	ids := make([]string, 0, len(o.Techniques))
	for id := range o.Techniques {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if o.Techniques[ids[a]] != o.Techniques[ids[b]] {
			return o.Techniques[ids[a]] > o.Techniques[ids[b]]
		}
		return ids[a] < ids[b]
	})

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		var tactics []string
		for _, tactic := range mitre.Tactics(id) {
			tactics = append(tactics, mitre.TacticName(tactic))
		}
		rows = append(rows, []string{
			id, mitre.Name(id), strings.Join(tactics, "; "),
			i(int64(o.Techniques[id])), strings.Join(o.TechniqueHosts[id], " "),
		})
	}
	return rows
}

func showTechniquesHuman(w io.Writer, o correlate.Overview) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Technique", "Name", "Tactics", "Detections", "Hosts"})
	for _, row := range techniqueRows(o) {
		row[4] = strings.Replace(row[4], " ", ",\n", -1)
		table.Append(row)
	}
	table.Render()
	return nil
}

func showTechniquesCsv(w io.Writer, o correlate.Overview) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Technique", "Name", "Tactics", "Detections", "Hosts"})
	for _, row := range techniqueRows(o) {
		csvWriter.Write(row)
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

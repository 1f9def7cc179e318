package commands

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/activecm/threatfuse/pkg/longconn"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-long-connections",
		Usage:     "Print long connections and relevant information",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			limitFlag,
			noLimitFlag,
			verboseFlag,
		},
		Action: func(c *cli.Context) error {
			res, s, err := openCommand(c)
			if err != nil {
				return err
			}
			defer res.Close()

			data := longconn.NewDetector(longconn.ConfigFrom(res.Config), res.Log).Analyze(s)
			if len(data) == 0 {
				return cli.NewExitError("No results were found", -1)
			}
			data = data[:limit(len(data), c.Int("limit"), c.Bool("no-limit"))]

			if c.Bool("human-readable") {
				err = showConnsHuman(c.App.Writer, data)
			} else {
				err = showConns(c.App.Writer, data)
			}
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			return nil
		},
	}
	bootstrapCommands(command)
}

func connRow(r *longconn.Finding) []string {
	return []string{
		f(r.Score()), string(r.ThreatLevel), r.Conn.SrcIP, r.Conn.DstIP,
		tuple(r.Conn.DstPort, r.Conn.Proto, r.Service),
		seconds(r.Conn.Duration), i(r.Conn.OrigBytes), f(r.Transfer.UploadRate),
		list(r.Techniques()),
	}
}

var connHeaders = []string{"Score", "Threat Level", "Source IP", "Destination IP",
	"Port:Proto:Service", "Duration", "Bytes Sent", "Upload Rate", "Techniques"}

func showConns(w io.Writer, connResults []*longconn.Finding) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write(connHeaders)
	for _, result := range connResults {
		csvWriter.Write(connRow(result))
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func showConnsHuman(w io.Writer, connResults []*longconn.Finding) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(connHeaders)
	for _, result := range connResults {
		row := connRow(result)
		row[8] = strings.Join(result.Techniques(), ",\n")
		table.Append(row)
	}
	table.Render()
	return nil
}

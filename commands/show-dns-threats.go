package commands

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/activecm/threatfuse/pkg/dnsthreat"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-dns-threats",
		Usage:     "Print DNS tunneling, DGA, fast flux and suspicious query findings",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			limitFlag,
			noLimitFlag,
			verboseFlag,
			cli.StringFlag{
				Name:  "variant",
				Usage: "Only print findings of `VARIANT` (dns_tunneling, dga, fast_flux, dns_suspicious)",
			},
		},
		Action: showDNSThreats,
	}

	bootstrapCommands(command)
}

func showDNSThreats(c *cli.Context) error {
	res, s, err := openCommand(c)
	if err != nil {
		return err
	}
	defer res.Close()

	detector, err := dnsthreat.NewDetector(dnsthreat.ConfigFrom(res.Config), res.Log)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	var data []dnsthreat.Finding
	for _, threat := range detector.Analyze(s).All() {
		if v := c.String("variant"); v != "" && string(threat.Variant()) != v {
			continue
		}
		data = append(data, threat)
	}
	sort.SliceStable(data, func(a, b int) bool { return data[a].Score() > data[b].Score() })
	if len(data) == 0 {
		return cli.NewExitError("No results were found", -1)
	}
	data = data[:limit(len(data), c.Int("limit"), c.Bool("no-limit"))]

	if c.Bool("human-readable") {
		err = showDNSThreatsHuman(c.App.Writer, data)
	} else {
		err = showDNSThreatsCsv(c.App.Writer, data)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

func dnsThreatRow(d dnsthreat.Finding) []string {
	var hosts []string
	for _, h := range d.Hosts() {
		hosts = append(hosts, h.IP)
	}
	return []string{
		f(d.Score()), string(d.Variant()), d.Kind(), d.Domain(),
		list(hosts), f(d.Confidence()), list(d.Techniques()), d.Describe(),
	}
}

func showDNSThreatsHuman(w io.Writer, data []dnsthreat.Finding) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Score", "Variant", "Kind", "Domain", "Hosts",
		"Confidence", "Techniques", "Description"})
	for _, d := range data {
		row := dnsThreatRow(d)
		row[4] = strings.Replace(row[4], " ", ",\n", -1)
		row[6] = strings.Join(d.Techniques(), ",\n")
		table.Append(row)
	}
	table.Render()
	return nil
}

func showDNSThreatsCsv(w io.Writer, data []dnsthreat.Finding) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Score", "Variant", "Kind", "Domain", "Hosts",
		"Confidence", "Techniques", "Description"})
	for _, d := range data {
		csvWriter.Write(dnsThreatRow(d))
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

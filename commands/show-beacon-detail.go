package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/activecm/threatfuse/pkg/beacon"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-beacon-detail",
		Usage:     "Print the connection series and histograms behind the beacon score of one host pair",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			verboseFlag,
			cli.StringFlag{
				Name:  "src",
				Usage: "Source `IP` of the pair",
			},
			cli.StringFlag{
				Name:  "dst",
				Usage: "Destination `IP` of the pair",
			},
		},
		Action: showBeaconDetail,
	}

	bootstrapCommands(command)
}

func showBeaconDetail(c *cli.Context) error {
	if c.String("src") == "" || c.String("dst") == "" {
		return cli.NewExitError("Specify the host pair with --src and --dst", -1)
	}

	res, s, err := openCommand(c)
	if err != nil {
		return err
	}
	defer res.Close()

	detector := beacon.NewDetector(beacon.ConfigFrom(res.Config), nil, res.Log)
	detail, err := detector.Detail(s, c.String("src"), c.String("dst"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	if c.Bool("human-readable") {
		err = showBeaconDetailHuman(c.App.Writer, detail)
	} else {
		err = showBeaconDetailCsv(c.App.Writer, detail)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

func showBeaconDetailHuman(w io.Writer, d *beacon.Detail) error {
	fmt.Fprintf(w, "%s\n", d.Finding.Describe())
	for _, reason := range d.Finding.Reasons() {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	fmt.Fprintln(w)

	stats := tablewriter.NewWriter(w)
	stats.SetHeader([]string{"Series", "Mean", "Median", "Min", "Max", "Std. Dev."})
	stats.Append([]string{"Interval (s)", f(d.Finding.Interval.Mean), f(d.Finding.Interval.Median),
		f(d.Finding.Interval.Min), f(d.Finding.Interval.Max), f(d.Finding.Interval.StdDev)})
	stats.Append([]string{"Bytes sent", f(d.Finding.Size.Mean), f(d.Finding.Size.Median),
		f(d.Finding.Size.Min), f(d.Finding.Size.Max), f(d.Finding.Size.StdDev)})
	stats.Render()
	fmt.Fprintln(w)

	histogram := tablewriter.NewWriter(w)
	histogram.SetHeader([]string{"Interval (s)", "Count"})
	for _, bin := range d.IntervalHistogram {
		histogram.Append([]string{f(bin.Value), i(int64(bin.Count))})
	}
	histogram.Render()
	fmt.Fprintln(w)

	buckets := tablewriter.NewWriter(w)
	buckets.SetHeader([]string{"Bucket Start", "Connections"})
	for n, count := range d.TimeBuckets {
		buckets.Append([]string{ts(time.Unix(d.BucketDivs[n], 0)), i(int64(count))})
	}
	buckets.Render()
	return nil
}

// showBeaconDetailCsv prints the raw series: one row per connection
func showBeaconDetailCsv(w io.Writer, d *beacon.Detail) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Source IP", "Destination IP", "Port:Proto:Service", "Timestamp", "Interval"})
	key := tuple(d.Key.DstPort, d.Key.Proto, d.Key.Service)
	for n, t := range d.Timestamps {
		interval := ""
		if n > 0 {
			interval = f(d.Intervals[n-1])
		}
		csvWriter.Write([]string{d.Key.SrcIP, d.Key.DstIP, key, ts(t), interval})
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

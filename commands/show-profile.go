package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/activecm/threatfuse/pkg/correlate"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-profile",
		Usage:     "Print the narrative, techniques and timeline of a single host",
		ArgsUsage: "<telemetry file>...",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			verboseFlag,
			cli.StringFlag{
				Name:  "ip",
				Usage: "Print the profile of `IP`",
			},
			cli.BoolFlag{
				Name:  "json",
				Usage: "Print the profile as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			ip := c.String("ip")
			if ip == "" {
				return cli.NewExitError("Specify a host with --ip", -1)
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

			profile, err := analysis.Profiles.Get(ip)
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}

			switch {
			case c.Bool("json"):
				err = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(c.App.Writer).Encode(profile)
			case c.Bool("human-readable"):
				err = showProfileHuman(c.App.Writer, profile)
			default:
				err = showTimelineCsv(c.App.Writer, profile)
			}
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			return nil
		},
	}

	bootstrapCommands(command)
}

func showProfileHuman(w io.Writer, p *correlate.Profile) error {
	fmt.Fprintf(w, "%s\n\n", p.Narrative)
	for _, reason := range p.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	if len(p.RelatedIPs) > 0 {
		fmt.Fprintf(w, "\nRelated hosts: %s\n", strings.Join(p.RelatedIPs, ", "))
	}
	if len(p.RelatedDomains) > 0 {
		fmt.Fprintf(w, "Related domains: %s\n", strings.Join(p.RelatedDomains, ", "))
	}
	fmt.Fprintln(w)

	techniques := tablewriter.NewWriter(w)
	techniques.SetHeader([]string{"Technique", "Name", "Tactics", "Detectors", "Detections", "First", "Last"})
	for _, id := range p.Techniques {
		te := p.TechniqueEvidence[id]
		if te == nil {
			continue
		}
		detectors := make([]string, len(te.Detectors))
		for n, d := range te.Detectors {
			detectors[n] = string(d)
		}
		techniques.Append([]string{
			te.ID, te.Name, strings.Join(te.Tactics, ",\n"), strings.Join(detectors, ",\n"),
			i(int64(te.DetectionCount)), ts(te.FirstDetected), ts(te.LastDetected),
		})
	}
	techniques.Render()
	fmt.Fprintln(w)

	timeline := tablewriter.NewWriter(w)
	timeline.SetHeader([]string{"Time", "Detector", "Kind", "Score", "Role", "Description"})
	for _, ev := range p.Timeline {
		timeline.Append([]string{
			ts(ev.Time), string(ev.Detector), ev.Kind, f(ev.Score), string(ev.Role), ev.Description,
		})
	}
	timeline.Render()
	return nil
}

func showTimelineCsv(w io.Writer, p *correlate.Profile) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"Host", "Time", "Detector", "Kind", "Score", "Role", "Description"})
	for _, ev := range p.Timeline {
		csvWriter.Write([]string{
			p.IP, ts(ev.Time), string(ev.Detector), ev.Kind, f(ev.Score), string(ev.Role), ev.Description,
		})
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

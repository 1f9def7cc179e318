package commands

import (
	"fmt"

	"github.com/activecm/threatfuse/config"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:   "version",
		Usage:  "Show threatfuse version",
		Action: showVersion,
	}

	bootstrapCommands(command)
}

func showVersion(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, config.ExactVersion)
	return nil
}

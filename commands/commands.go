package commands

import (
	"github.com/urfave/cli"
)

var (
	allCommands []cli.Command

	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "Use a given `CONFIG_FILE` when running this command",
		Value: "",
	}

	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "Print a report instead of csv",
	}

	limitFlag = cli.IntFlag{
		Name:  "limit",
		Usage: "Print upto the `LIMIT` most significant results",
		Value: 1000,
	}

	noLimitFlag = cli.BoolFlag{
		Name:  "no-limit",
		Usage: "Print all results",
	}

	verboseFlag = cli.BoolFlag{
		Name:  "verbose, v",
		Usage: "Print log messages and progress to standard error",
	}
)

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

// bootstrapCommands simply adds a given command to the allCommands array
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/activecm/threatfuse/commands"
	"github.com/activecm/threatfuse/config"
	"github.com/urfave/cli"
)

// Entry point of threatfuse
func main() {
	app := cli.NewApp()
	app.Name = "threatfuse"
	app.Usage = "Correlate beacons, DNS threats, alerts and long connections into host threat profiles."

	// Change the version string with updates so that a quick help command will
	// let the testers know what version of threatfuse they're on
	app.Version = config.Version

	// Define commands used with this application
	app.Commands = commands.Commands()

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package commands

import (
	"fmt"

	"github.com/activecm/threatfuse/config"
	"github.com/activecm/threatfuse/resources"
	"github.com/urfave/cli"
	yaml "gopkg.in/yaml.v2"
)

func init() {
	command := cli.Command{
		Flags: []cli.Flag{
			configFlag,
		},
		Name:   "test-config",
		Usage:  "Check the configuration file for validity",
		Action: testConfiguration,
	}

	bootstrapCommands(command)
}

// testConfiguration prints out the result of parsing the config file
func testConfiguration(c *cli.Context) error {
	// First, print out the config as it was parsed
	conf, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("Failed to config: %s", err.Error()), -1)
	}

	staticConfig, err := yaml.Marshal(conf.S)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	source := conf.S.SourceFile
	if source == "" {
		source = "built in defaults"
	}
	fmt.Fprintf(c.App.Writer, "# %s\n\n%s\n", source, string(staticConfig))

	// Then test initializing external resources like db connection and file handles
	res, err := resources.NewResources(c.String("config"), false)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	if res.DB != nil {
		fmt.Fprintf(c.App.Writer, "Connected to MongoDB database %s\n", res.DB.SelectedDB())
	}
	return nil
}

package cmd

import (
	"github.com/urfave/cli/v3"
)

const (
	debugFlag  = "debug"
	targetFlag = "target"
)

func RootCommand() *cli.Command {
	return &cli.Command{
		Name:            "run",
		Usage:           "Operate the monorepo's local and cloud environments",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlag,
				Usage: "Enable debug output",
			},
			&cli.StringFlag{
				Name:    targetFlag,
				Aliases: []string{"t"},
				Usage:   "Environment target (loads .env.<target> on top of .env)",
			},
		},
		Commands: []*cli.Command{
			DockerCommand(),
			TerraformCommand(),
			HasuraCommand(),
			ActionCommand(),
			CustomCommand(),
			MachineCommand(),
			RoutineCommand(),
			TunnelCommand(),
			VaultCommand(),
			MetaCommand(),
			UtilsCommand(),
			MiscCommand(),
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ghostmind-dev/run-sub002/envf"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/urfave/cli/v3"
)

const eventFlag = "event"

func ActionCommand() *cli.Command {
	return &cli.Command{
		Name:  "action",
		Usage: "Run and trigger GitHub Actions workflows",
		Commands: []*cli.Command{
			actionRunCommand(),
			actionTriggerCommand(),
			{
				Name:  "list",
				Usage: "List the repository's workflows",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return shell.New("gh", "workflow", "list").Run(ctx)
				},
			},
		},
	}
}

func actionRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow locally with act",
		ArgsUsage: "<workflow-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: eventFlag, Value: "push", Usage: "Event to simulate"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			workflow := cmd.Args().First()
			if workflow == "" {
				return fmt.Errorf("usage: run action run <workflow-file>")
			}
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}

			// act reads secrets from a dotenv-format file; render the loaded
			// env into a throwaway one.
			secrets, err := os.CreateTemp("", "run-act-secrets-*")
			if err != nil {
				return err
			}
			secrets.Close()
			defer os.Remove(secrets.Name())
			if err := envf.Write(p.Env, secrets.Name()); err != nil {
				return err
			}

			return shell.New("act", cmd.String(eventFlag),
				"-W", workflow,
				"--secret-file", secrets.Name(),
			).In(p.Meta.Dir).Run(ctx)
		},
	}
}

func actionTriggerCommand() *cli.Command {
	return &cli.Command{
		Name:      "trigger",
		Usage:     "Dispatch a workflow on GitHub",
		ArgsUsage: "<workflow> [key=value...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			workflow := cmd.Args().First()
			if workflow == "" {
				return fmt.Errorf("usage: run action trigger <workflow> [key=value...]")
			}
			args := []string{"workflow", "run", workflow}
			for _, kv := range cmd.Args().Tail() {
				args = append(args, "-f", kv)
			}
			return shell.New("gh", args...).Run(ctx)
		},
	}
}

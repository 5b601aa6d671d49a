package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	ctr "github.com/ghostmind-dev/run-sub002/container"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag        = "file"
	waitFlag        = "wait"
	waitTimeoutFlag = "wait-timeout"
	buildFlag       = "build"
	volumesFlag     = "volumes"
)

func composeCommand() *cli.Command {
	return &cli.Command{
		Name:  "compose",
		Usage: "Drive docker compose for the project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: fileFlag, Aliases: []string{"f"}, Usage: "Named compose config from meta.json (default: default)"},
		},
		Commands: []*cli.Command{
			composeUpCommand(),
			composeDownCommand(),
			composeBuildCommand(),
			composeExecCommand(),
			composePsCommand(),
			composeLogsCommand(),
		},
	}
}

// composeArgs assembles the common `docker compose` prefix for the project.
func composeArgs(p *project, cmd *cli.Command) ([]string, error) {
	file, err := p.Meta.ComposeFile(cmd.String(fileFlag))
	if err != nil {
		return nil, err
	}
	return []string{"compose", "-f", file, "-p", p.ComposeProject()}, nil
}

func composeUpCommand() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Start the compose services detached",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: buildFlag, Usage: "Build images before starting"},
			&cli.BoolFlag{Name: waitFlag, Usage: "Block until every service is running and healthy"},
			&cli.DurationFlag{Name: waitTimeoutFlag, Value: 60 * time.Second, Usage: "How long --wait polls before giving up"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			args, err := composeArgs(p, cmd)
			if err != nil {
				return err
			}
			args = append(args, "up", "-d")
			if cmd.Bool(buildFlag) {
				args = append(args, "--build")
			}
			if err := shell.New("docker", args...).Env(p.EnvPairs()...).Run(ctx); err != nil {
				return err
			}
			if !cmd.Bool(waitFlag) {
				return nil
			}

			client, err := ctr.NewClient()
			if err != nil {
				return err
			}
			defer client.Close()

			waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration(waitTimeoutFlag))
			defer cancel()

			tui.Status("waiting", "for %s services to become ready", p.ComposeProject())
			if err := client.WaitReady(waitCtx, p.ComposeProject(), 2*time.Second); err != nil {
				return err
			}
			tui.Status("ready", "%s", p.ComposeProject())
			return nil
		},
	}
}

func composeDownCommand() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "Stop and remove the compose services",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: volumesFlag, Aliases: []string{"v"}, Usage: "Also remove named volumes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			args, err := composeArgs(p, cmd)
			if err != nil {
				return err
			}
			args = append(args, "down", "--remove-orphans")
			if cmd.Bool(volumesFlag) {
				args = append(args, "--volumes")
			}
			return shell.New("docker", args...).Env(p.EnvPairs()...).Run(ctx)
		},
	}
}

func composeBuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build the compose service images",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: noCacheFlag, Usage: "Build without cache"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			args, err := composeArgs(p, cmd)
			if err != nil {
				return err
			}
			args = append(args, "build")
			if cmd.Bool(noCacheFlag) {
				args = append(args, "--no-cache")
			}
			return shell.New("docker", args...).Env(p.EnvPairs()...).Run(ctx)
		},
	}
}

func composeExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Run a command inside a running service container",
		ArgsUsage: "<service> [command...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			service := cmd.Args().First()
			if service == "" {
				return fmt.Errorf("usage: run docker compose exec <service> [command...]")
			}
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}

			// Fail with a useful message before compose does.
			client, err := ctr.NewClient()
			if err != nil {
				return err
			}
			defer client.Close()
			if _, err := client.FindService(ctx, p.ComposeProject(), service); err != nil {
				return err
			}

			args, err := composeArgs(p, cmd)
			if err != nil {
				return err
			}
			args = append(args, "exec", service)
			if rest := cmd.Args().Tail(); len(rest) > 0 {
				args = append(args, rest...)
			} else {
				args = append(args, "sh")
			}
			return shell.New("docker", args...).Env(p.EnvPairs()...).Run(ctx)
		},
	}
}

func composeLogsCommand() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Follow a service's log output",
		ArgsUsage: "<service>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			service := cmd.Args().First()
			if service == "" {
				return fmt.Errorf("usage: run docker compose logs <service>")
			}
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			client, err := ctr.NewClient()
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := client.FindService(ctx, p.ComposeProject(), service)
			if err != nil {
				return err
			}
			return client.StreamLogs(ctx, id, os.Stdout)
		},
	}
}

func composePsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ps",
		Usage: "Show the project's compose services",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			client, err := ctr.NewClient()
			if err != nil {
				return err
			}
			defer client.Close()

			services, err := client.ComposeServices(ctx, p.ComposeProject())
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Printf("No containers for project %s.\n", p.ComposeProject())
				return nil
			}
			for _, svc := range services {
				ports := strings.Join(svc.Ports, ", ")
				fmt.Printf("%-20s %-12s %s\n", svc.Name, svc.State, ports)
			}
			return nil
		},
	}
}

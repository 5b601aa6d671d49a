package cmd

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	ctr "github.com/ghostmind-dev/run-sub002/container"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

const revealFlag = "reveal"

// requiredTools maps each external CLI to the component that needs it.
var requiredTools = []struct {
	name string
	used string
}{
	{"docker", "docker build/register/compose"},
	{"terraform", "terraform init/plan/apply/destroy"},
	{"hasura", "hasura console/migrate/metadata"},
	{"gcloud", "cloud builds, state locks, machine"},
	{"git", "utils commit/amend, repo root discovery"},
	{"ssh", "tunnel up"},
	{"tmux", "misc tmux, machine ssh --tmux"},
	{"vault", "vault export/import"},
	{"act", "action run"},
	{"gh", "action trigger/list"},
}

var secretKeyPattern = regexp.MustCompile(`(?i)(SECRET|TOKEN|PASSWORD|KEY|CREDENTIAL)`)

func MiscCommand() *cli.Command {
	return &cli.Command{
		Name:  "misc",
		Usage: "Diagnostics and workstation helpers",
		Commands: []*cli.Command{
			miscDoctorCommand(),
			miscEnvCommand(),
			miscTmuxCommand(),
		},
	}
}

func miscDoctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check that the external tools are available",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			missing := 0
			for _, tool := range requiredTools {
				if shell.Exists(tool.name) {
					tui.Status("ok", "%-10s %s", tool.name, tui.Dim(tool.used))
				} else {
					tui.Warn("%-10s missing (needed for %s)", tool.name, tool.used)
					missing++
				}
			}

			if client, err := ctr.NewClient(); err != nil {
				tui.Warn("container daemon unreachable: %v", err)
				missing++
			} else {
				runtime := client.Runtime()
				client.Close()
				tui.Status("ok", "%-10s daemon reachable", runtime)
			}

			if missing > 0 {
				return fmt.Errorf("%d problems found", missing)
			}
			fmt.Println("All checks passed.")
			return nil
		},
	}
}

func miscEnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Print the resolved environment for the project",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: revealFlag, Usage: "Show secret-looking values instead of redacting them"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			for _, pair := range p.EnvPairs() {
				key, value, _ := strings.Cut(pair, "=")
				if !cmd.Bool(revealFlag) && secretKeyPattern.MatchString(key) {
					value = "********"
				}
				fmt.Printf("%s=%s\n", key, value)
			}
			return nil
		},
	}
}

func miscTmuxCommand() *cli.Command {
	return &cli.Command{
		Name:      "tmux",
		Usage:     "Create or attach the project's tmux session",
		ArgsUsage: "[session]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			session := cmd.Args().First()
			if session == "" {
				session = p.Meta.Name
			}
			// new-session -A attaches when the session already exists.
			return shell.New("tmux", "new-session", "-A", "-s", session, "-c", p.Meta.Dir).Run(ctx)
		},
	}
}

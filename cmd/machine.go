package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

const tmuxFlag = "tmux"

func MachineCommand() *cli.Command {
	return &cli.Command{
		Name:  "machine",
		Usage: "Manage the project's remote dev machine (GCE)",
		Commands: []*cli.Command{
			machineOpCommand("start", "Start the instance"),
			machineOpCommand("stop", "Stop the instance"),
			machineStatusCommand(),
			machineSSHCommand(),
		},
	}
}

// machineConfig resolves the machine section, required by every subcommand.
func machineConfig(p *project) (*meta.MachineConfig, error) {
	if p.Meta.Machine == nil {
		return nil, fmt.Errorf("no machine section in %s", filepath.Join(p.Meta.Dir, meta.FileName))
	}
	return p.Meta.Machine, nil
}

func machineArgs(m *meta.MachineConfig, op string) []string {
	args := []string{"compute", "instances", op, m.Instance, "--zone", m.Zone}
	if m.Project != "" {
		args = append(args, "--project", m.Project)
	}
	return args
}

func machineOpCommand(op, usage string) *cli.Command {
	return &cli.Command{
		Name:  op,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			m, err := machineConfig(p)
			if err != nil {
				return err
			}
			return shell.New("gcloud", machineArgs(m, op)...).Run(ctx)
		},
	}
}

func machineStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the instance status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			m, err := machineConfig(p)
			if err != nil {
				return err
			}
			args := append(machineArgs(m, "describe"), "--format", "value(status)")
			status, err := shell.New("gcloud", args...).Capture(ctx)
			if err != nil {
				return err
			}
			tui.Status("machine", "%s is %s", m.Instance, status)
			return nil
		},
	}
}

func machineSSHCommand() *cli.Command {
	return &cli.Command{
		Name:  "ssh",
		Usage: "Open a shell on the instance",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: tmuxFlag, Usage: "Attach a shared tmux session on the machine"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			m, err := machineConfig(p)
			if err != nil {
				return err
			}
			args := []string{"compute", "ssh", m.Instance, "--zone", m.Zone}
			if m.Project != "" {
				args = append(args, "--project", m.Project)
			}
			if cmd.Bool(tmuxFlag) {
				args = append(args, "--", "-t", "tmux new -A -s run")
			}
			return shell.New("gcloud", args...).Run(ctx)
		},
	}
}

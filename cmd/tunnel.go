package cmd

import (
	"context"
	"fmt"

	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/ghostmind-dev/run-sub002/tunnel"
	"github.com/urfave/cli/v3"
)

func TunnelCommand() *cli.Command {
	return &cli.Command{
		Name:  "tunnel",
		Usage: "Manage the project's SSH port forwards",
		Commands: []*cli.Command{
			tunnelUpCommand(),
			tunnelDownCommand(),
			tunnelStatusCommand(),
		},
	}
}

func tunnelUpCommand() *cli.Command {
	return &cli.Command{
		Name:      "up",
		Usage:     "Start a named tunnel",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("usage: run tunnel up <name>")
			}
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			spec, ok := p.Meta.Tunnel[name]
			if !ok {
				return fmt.Errorf("no tunnel %q in meta.json", name)
			}

			mgr, err := tunnel.NewManager()
			if err != nil {
				return err
			}
			rt, err := mgr.Up(ctx, name, spec)
			if err != nil {
				return err
			}
			tui.Status("tunnel", "%s %s -> %s via %s (pid %d)", name, rt.Local, rt.Remote, rt.Via, rt.PID)
			return nil
		},
	}
}

func tunnelDownCommand() *cli.Command {
	return &cli.Command{
		Name:      "down",
		Usage:     "Stop a named tunnel",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("usage: run tunnel down <name>")
			}
			mgr, err := tunnel.NewManager()
			if err != nil {
				return err
			}
			if err := mgr.Down(name); err != nil {
				return err
			}
			tui.Status("closed", "tunnel %s", name)
			return nil
		},
	}
}

func tunnelStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "List recorded tunnels and their liveness",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			mgr, err := tunnel.NewManager()
			if err != nil {
				return err
			}
			live, dead, err := mgr.Status()
			if err != nil {
				return err
			}
			if len(live) == 0 && len(dead) == 0 {
				fmt.Println("No tunnels recorded.")
				return nil
			}
			for _, rt := range live {
				fmt.Printf("%-15s %s -> %s via %s (pid %d, since %s)\n",
					rt.Name, rt.Local, rt.Remote, rt.Via, rt.PID, rt.StartedAt.Format("15:04:05"))
			}
			for _, name := range dead {
				tui.Warn("tunnel %s is gone, pruned from state", name)
			}
			return nil
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

func RoutineCommand() *cli.Command {
	return &cli.Command{
		Name:      "routine",
		Usage:     "Run a named step sequence from meta.json",
		ArgsUsage: "[name]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}

			name := cmd.Args().First()
			if name == "" {
				if len(p.Meta.Routines) == 0 {
					fmt.Println("No routines defined.")
					return nil
				}
				names := make([]string, 0, len(p.Meta.Routines))
				for n := range p.Meta.Routines {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					r := p.Meta.Routines[n]
					fmt.Printf("%-20s %d steps  %s\n", n, len(r.Steps), tui.Dim(r.Description))
				}
				return nil
			}

			routine, ok := p.Meta.Routines[name]
			if !ok {
				return fmt.Errorf("no routine %q (run `run routine` to list)", name)
			}

			for i, step := range routine.Steps {
				tui.Status("step", "%d/%d %s", i+1, len(routine.Steps), step.Command)
				err := shell.New("sh", "-c", step.Command).
					In(filepath.Join(p.Meta.Dir, step.Dir)).
					Env(p.EnvPairs()...).
					Run(ctx)
				if err != nil {
					if step.ContinueOnError {
						tui.Warn("step %d failed, continuing: %v", i+1, err)
						continue
					}
					return fmt.Errorf("routine %q stopped at step %d: %w", name, i+1, err)
				}
			}
			tui.Status("done", "routine %s", name)
			return nil
		},
	}
}

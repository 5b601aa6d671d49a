package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/urfave/cli/v3"
)

func CustomCommand() *cli.Command {
	return &cli.Command{
		Name:      "custom",
		Usage:     "Run a project-defined command from meta.json",
		ArgsUsage: "[name] [args...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}

			name := cmd.Args().First()
			if name == "" {
				if len(p.Meta.Custom) == 0 {
					fmt.Println("No custom commands defined.")
					return nil
				}
				names := make([]string, 0, len(p.Meta.Custom))
				for n := range p.Meta.Custom {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					fmt.Printf("%-20s %s\n", n, p.Meta.Custom[n].Command)
				}
				return nil
			}

			custom, ok := p.Meta.Custom[name]
			if !ok {
				return fmt.Errorf("no custom command %q (run `run custom` to list)", name)
			}

			line := custom.Command
			if rest := cmd.Args().Tail(); len(rest) > 0 {
				line += " " + strings.Join(rest, " ")
			}
			return shell.New("sh", "-c", line).
				In(filepath.Join(p.Meta.Dir, custom.Dir)).
				Env(p.EnvPairs()...).
				Run(ctx)
		},
	}
}

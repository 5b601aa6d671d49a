package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/urfave/cli/v3"
)

const allFlag = "all"

func MetaCommand() *cli.Command {
	return &cli.Command{
		Name:  "meta",
		Usage: "Inspect and validate project descriptors",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the resolved descriptor for the current project",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p, err := loadProject(cmd)
					if err != nil {
						return err
					}
					out, err := json.MarshalIndent(p.Meta, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(out))
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Validate descriptors (current project, or the whole repo with --all)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: allFlag, Usage: "Validate every meta.json under the repo root"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					wd, err := os.Getwd()
					if err != nil {
						return err
					}

					if !cmd.Bool(allFlag) {
						m, err := meta.Find(wd)
						if err != nil {
							return err
						}
						tui.Status("valid", "%s", filepath.Join(m.Dir, meta.FileName))
						return nil
					}

					root, err := meta.RepoRoot(wd)
					if err != nil {
						return err
					}
					metas, err := meta.Scan(root)
					if err != nil {
						return err
					}
					for _, m := range metas {
						tui.Status("valid", "%s", filepath.Join(m.Dir, meta.FileName))
					}
					fmt.Printf("%d descriptors validated.\n", len(metas))
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List every project under the repo root",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					wd, err := os.Getwd()
					if err != nil {
						return err
					}
					root, err := meta.RepoRoot(wd)
					if err != nil {
						return err
					}
					metas, err := meta.Scan(root)
					if err != nil {
						return err
					}
					if len(metas) == 0 {
						fmt.Println("No descriptors found.")
						return nil
					}
					for _, m := range metas {
						rel, err := filepath.Rel(root, m.Dir)
						if err != nil {
							rel = m.Dir
						}
						typ := m.Type
						if typ == "" {
							typ = "-"
						}
						fmt.Printf("%-20s %-10s %s\n", m.Name, typ, tui.Dim(rel))
					}
					return nil
				},
			},
		},
	}
}

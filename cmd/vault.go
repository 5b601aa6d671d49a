package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ghostmind-dev/run-sub002/envf"
	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/ghostmind-dev/run-sub002/tui"
	"github.com/ghostmind-dev/run-sub002/vault"
	"github.com/urfave/cli/v3"
)

func VaultCommand() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "Move secrets between Vault and the project's env files",
		Commands: []*cli.Command{
			vaultExportCommand(),
			vaultImportCommand(),
			{
				Name:      "login",
				Usage:     "Authenticate the vault CLI",
				ArgsUsage: "[args...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					args := append([]string{"login"}, cmd.Args().Slice()...)
					return shell.New("vault", args...).Run(ctx)
				},
			},
		},
	}
}

// vaultClient resolves the project's KV path and runs the preflight checks.
func vaultClient(p *project) (*vault.Client, error) {
	if p.Meta.Secrets == nil || p.Meta.Secrets.VaultPath == "" {
		return nil, fmt.Errorf("no secrets.vault_path in %s", filepath.Join(p.Meta.Dir, meta.FileName))
	}
	if err := vault.Preflight(); err != nil {
		return nil, err
	}
	return vault.New(p.Meta.Secrets.VaultPath), nil
}

func vaultExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Fetch the project's secret and write .env.<target>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			client, err := vaultClient(p)
			if err != nil {
				return err
			}
			n, err := client.Export(ctx, p.Meta.Dir, p.Target)
			if err != nil {
				return err
			}
			tui.Status("exported", "%d secrets -> %s", n, envf.File(p.Meta.Dir, p.Target))
			return nil
		},
	}
}

func vaultImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Push .env.<target> back to the project's vault path",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			client, err := vaultClient(p)
			if err != nil {
				return err
			}
			n, err := client.Import(ctx, p.Meta.Dir, p.Target)
			if err != nil {
				return err
			}
			tui.Status("imported", "%d secrets -> %s", n, client.Path)
			return nil
		},
	}
}
